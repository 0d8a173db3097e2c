// internal/services/cache_keys.go
package services

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

const (
	categoryListKey      = "categories:active"
	nominationListPrefix = "nominations:list:"
)

// nominationListKey builds a key from every filter parameter. Values are query-escaped so no
// two distinct filter sets can produce the same key.
func nominationListKey(filter *NominationFilter) string {
	v := url.Values{}
	v.Set("category", filter.CategoryID)
	v.Set("status", string(filter.Status))
	v.Set("country", filter.Country)
	v.Set("search", filter.Search)
	v.Set("page", strconv.Itoa(filter.Page))
	v.Set("limit", strconv.Itoa(filter.Limit))
	v.Set("sort", filter.Sort)
	v.Set("order", filter.Order)
	return nominationListPrefix + v.Encode()
}

func invalidateNominationLists(ctx context.Context, c cache.Cache) {
	if err := c.DeleteByPrefix(ctx, nominationListPrefix); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate nomination list cache")
	}
}

func invalidateCategoryList(ctx context.Context, c cache.Cache) {
	if err := c.Delete(ctx, categoryListKey); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate category cache")
	}
}

// NominationPage is what the public list caches.
type NominationPage struct {
	Items []models.Nomination `json:"items"`
	Meta  utils.PageMeta      `json:"meta"`
}

// Cache failures degrade to a database read.
func logCacheError(err error, key string) {
	logrus.WithError(err).WithField("key", key).Warn("Cache unavailable")
}
