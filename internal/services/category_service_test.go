package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/testutil"
)

func TestCategoryCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Categories.Create(ctx, &CategoryRequest{Name: "  Innovation Excellence ", Icon: "bulb"})
	require.NoError(t, err)
	assert.Equal(t, "Innovation Excellence", created.Name)
	assert.Equal(t, "innovation-excellence", created.Slug)
	assert.True(t, created.IsActive)

	inactive := false
	_, err = env.svc.Categories.Create(ctx, &CategoryRequest{Name: "Hidden", IsActive: &inactive})
	require.NoError(t, err)

	categories, err := env.svc.Categories.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, created.ID, categories[0].ID)

	bySlug, err := env.svc.Categories.Get(ctx, "innovation-excellence")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	_, err = env.svc.Categories.Get(ctx, "hidden")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCategoryCreateRejectsDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Categories.Create(ctx, &CategoryRequest{Name: "Leadership"})
	require.NoError(t, err)

	_, err = env.svc.Categories.Create(ctx, &CategoryRequest{Name: "leadership"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = env.svc.Categories.Create(ctx, &CategoryRequest{Name: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCategoryListIsCachedAndInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Categories.Create(ctx, &CategoryRequest{Name: "Leadership"})
	require.NoError(t, err)

	categories, err := env.svc.Categories.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)

	// Bypasses the service, so the cached list is still served
	testutil.CreateCategory(t, env.db, "Community")
	categories, err = env.svc.Categories.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	_, err = env.svc.Categories.Update(ctx, first.ID, &CategoryRequest{Name: "Leadership Impact"})
	require.NoError(t, err)

	categories, err = env.svc.Categories.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)
}

func TestCategoryDeleteBlockedByNominations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category := testutil.CreateCategory(t, env.db, "Innovation")
	testutil.CreateNomination(t, env.db, category.ID, "Jane Doe", models.NominationStatusPending)

	err := env.svc.Categories.Delete(ctx, category.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))
	assert.Contains(t, apperr.Message(err), "1 existing nomination")

	var count int64
	require.NoError(t, env.db.Model(&models.AwardCategory{}).Where("id = ?", category.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCategoryDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category := testutil.CreateCategory(t, env.db, "Innovation")
	require.NoError(t, env.svc.Categories.Delete(ctx, category.ID))

	err := env.svc.Categories.Delete(ctx, category.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = env.svc.Categories.Delete(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCategoryAdminListCountsNominations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category := testutil.CreateCategory(t, env.db, "Innovation")
	testutil.CreateCategory(t, env.db, "Empty")
	testutil.CreateNomination(t, env.db, category.ID, "A", models.NominationStatusPending)
	testutil.CreateNomination(t, env.db, category.ID, "B", models.NominationStatusApproved)

	categories, err := env.svc.Categories.AdminList(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)

	counts := map[string]int64{}
	for _, c := range categories {
		counts[c.Name] = c.NominationCount
	}
	assert.Equal(t, int64(2), counts["Innovation"])
	assert.Equal(t, int64(0), counts["Empty"])
}
