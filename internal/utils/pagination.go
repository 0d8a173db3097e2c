// internal/utils/pagination.go
package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
)

type PaginationParams struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Sort  string `json:"sort"`
	Order string `json:"order"`
}

type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// SortField maps a public sort name to its column.
type SortField struct {
	Name   string
	Column string
}

func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))

	return NormalizePagination(PaginationParams{
		Page:  page,
		Limit: limit,
		Sort:  c.DefaultQuery("sort", "createdAt"),
		Order: strings.ToLower(c.DefaultQuery("order", "desc")),
	})
}

func NormalizePagination(params PaginationParams) PaginationParams {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = DefaultPageLimit
	}
	if params.Limit > MaxPageLimit {
		params.Limit = MaxPageLimit
	}
	if params.Order != "asc" && params.Order != "desc" {
		params.Order = "desc"
	}
	if params.Sort == "" {
		params.Sort = "createdAt"
	}
	return params
}

func ApplyPagination(db *gorm.DB, params PaginationParams) *gorm.DB {
	offset := (params.Page - 1) * params.Limit
	return db.Offset(offset).Limit(params.Limit)
}

// ApplySort orders by an allowed field, falling back to created_at. Any other primary key gets
// created_at DESC as the tie-break.
func ApplySort(db *gorm.DB, params PaginationParams, allowed []SortField) *gorm.DB {
	column := "created_at"
	for _, field := range allowed {
		if field.Name == params.Sort || field.Column == params.Sort {
			column = field.Column
			break
		}
	}

	db = db.Order(column + " " + params.Order)
	if column != "created_at" {
		db = db.Order("created_at DESC")
	}
	return db
}

func NewPageMeta(total int64, params PaginationParams) PageMeta {
	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))

	return PageMeta{
		CurrentPage: params.Page,
		Limit:       params.Limit,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     params.Page < totalPages,
		HasPrev:     params.Page > 1,
	}
}

func SetPaginationHeaders(c *gin.Context, meta PageMeta) {
	c.Header("X-Total-Count", strconv.FormatInt(meta.TotalItems, 10))
	c.Header("X-Page", strconv.Itoa(meta.CurrentPage))
	c.Header("X-Per-Page", strconv.Itoa(meta.Limit))
	c.Header("X-Total-Pages", strconv.Itoa(meta.TotalPages))
}
