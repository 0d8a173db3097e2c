package services

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/testutil"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

func validNominationRequest(categoryID string) *NominationRequest {
	return &NominationRequest{
		NomineeName:      "Jane <b>Doe</b>",
		NomineeCountry:   "Uganda",
		CategoryID:       categoryID,
		NominationReason: "Built the national payments switch",
		NominatorName:    "John",
		NominatorEmail:   "  John@X.com ",
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})))
	return buf.Bytes()
}

func TestSubmitNomination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")

	photo := &PhotoUpload{Reader: bytes.NewReader(pngBytes(t, 1200, 900)), Filename: "jane.png"}
	nomination, err := env.svc.Nominations.Submit(ctx, validNominationRequest(category.ID.String()), photo)
	require.NoError(t, err)

	assert.Equal(t, models.NominationStatusPending, nomination.Status)
	assert.Equal(t, "Jane Doe", nomination.NomineeName)
	assert.Equal(t, "john@x.com", nomination.NominatorEmail)
	assert.Zero(t, nomination.TotalVotes)
	assert.True(t, strings.HasPrefix(nomination.NomineePhoto, "/uploads/nominations/"))
	assert.True(t, strings.HasSuffix(nomination.NomineePhoto, ".jpg"))

	key, ok := env.svc.Storage.KeyFromURL(nomination.NomineePhoto)
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(env.cfg.Storage.LocalPath, key))
	assert.NoError(t, err)

	emails := env.tasks(t, models.TaskKindEmail)
	require.Len(t, emails, 1)

	env.drain(t)
	sent := env.mailer.bySubjectPrefix("Nomination received")
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"john@x.com"}, sent[0].To)
	assert.Contains(t, sent[0].HTML, "Jane Doe")
}

func TestSubmitNominationValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")

	inactive := testutil.CreateCategory(t, env.db, "Retired")
	require.NoError(t, env.db.Model(inactive).Update("is_active", false).Error)

	tests := []struct {
		name   string
		mutate func(r *NominationRequest)
	}{
		{"missing nominee", func(r *NominationRequest) { r.NomineeName = "" }},
		{"blank after sanitize", func(r *NominationRequest) { r.NomineeName = "<script></script>" }},
		{"bad email", func(r *NominationRequest) { r.NominatorEmail = "nope" }},
		{"bad category id", func(r *NominationRequest) { r.CategoryID = "not-a-uuid" }},
		{"inactive category", func(r *NominationRequest) { r.CategoryID = inactive.ID.String() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validNominationRequest(category.ID.String())
			tt.mutate(req)

			_, err := env.svc.Nominations.Submit(ctx, req, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation), err.Error())
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Nomination{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitNominationRejectsBadPhoto(t *testing.T) {
	env := newTestEnv(t)
	category := testutil.CreateCategory(t, env.db, "Innovation")

	photo := &PhotoUpload{Reader: strings.NewReader("definitely not an image"), Filename: "jane.png"}
	_, err := env.svc.Nominations.Submit(context.Background(), validNominationRequest(category.ID.String()), photo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSubmitNominationRemovesPhotoWhenInsertFails(t *testing.T) {
	env := newTestEnv(t)
	category := testutil.CreateCategory(t, env.db, "Innovation")

	insertErr := errors.New("insert refused")
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:refuse_nominations", func(tx *gorm.DB) {
		if tx.Statement.Table == "nominations" {
			_ = tx.AddError(insertErr)
		}
	}))
	t.Cleanup(func() { _ = env.db.Callback().Create().Remove("test:refuse_nominations") })

	photo := &PhotoUpload{Reader: bytes.NewReader(pngBytes(t, 400, 300)), Filename: "jane.png"}
	_, err := env.svc.Nominations.Submit(context.Background(), validNominationRequest(category.ID.String()), photo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	assert.True(t, errors.Is(err, insertErr))

	entries, err := os.ReadDir(filepath.Join(env.cfg.Storage.LocalPath, "nominations"))
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)

	var count int64
	require.NoError(t, env.db.Model(&models.Nomination{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, env.tasks(t, models.TaskKindEmail))
}

func TestListDefaultsToApprovedAndHidesPrivateFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")

	testutil.CreateNomination(t, env.db, category.ID, "Pending Person", models.NominationStatusPending)
	approved := testutil.CreateNomination(t, env.db, category.ID, "Approved Person", models.NominationStatusApproved)
	testutil.CreateNomination(t, env.db, category.ID, "Winner Person", models.NominationStatusWinner)

	page, err := env.svc.Nominations.List(ctx, &NominationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, approved.ID, page.Items[0].ID)
	assert.Empty(t, page.Items[0].NominatorEmail)
	assert.Equal(t, int64(1), page.Meta.TotalItems)

	page, err = env.svc.Nominations.List(ctx, &NominationFilter{Status: models.NominationStatusWinner})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Winner Person", page.Items[0].NomineeName)

	_, err = env.svc.Nominations.List(ctx, &NominationFilter{Status: models.NominationStatusPending})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestListFiltersAndSorts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	innovation := testutil.CreateCategory(t, env.db, "Innovation")
	leadership := testutil.CreateCategory(t, env.db, "Leadership")

	testutil.CreateNomination(t, env.db, innovation.ID, "Alice Akello", models.NominationStatusApproved)
	b := testutil.CreateNomination(t, env.db, innovation.ID, "Bob Okello", models.NominationStatusApproved)
	c := testutil.CreateNomination(t, env.db, leadership.ID, "Carol 100%", models.NominationStatusApproved)
	require.NoError(t, env.db.Model(c).Update("nominee_country", "Kenya").Error)
	require.NoError(t, env.db.Model(b).Update("total_votes", 5).Error)

	page, err := env.svc.Nominations.List(ctx, &NominationFilter{CategoryID: innovation.ID.String()})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = env.svc.Nominations.List(ctx, &NominationFilter{Country: "kEnYa"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c.ID, page.Items[0].ID)

	page, err = env.svc.Nominations.List(ctx, &NominationFilter{Search: "KELLO"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	// Wildcards in the search text match literally
	page, err = env.svc.Nominations.List(ctx, &NominationFilter{Search: "%"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c.ID, page.Items[0].ID)

	page, err = env.svc.Nominations.List(ctx, &NominationFilter{
		PaginationParams: utils.PaginationParams{Sort: "totalVotes", Order: "desc"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, b.ID, page.Items[0].ID)

	page, err = env.svc.Nominations.List(ctx, &NominationFilter{
		PaginationParams: utils.PaginationParams{Page: 2, Limit: 2},
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Meta.TotalPages)
	assert.False(t, page.Meta.HasNext)
	assert.True(t, page.Meta.HasPrev)
}

func TestListIsCachedUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")
	testutil.CreateNomination(t, env.db, category.ID, "First", models.NominationStatusApproved)

	page, err := env.svc.Nominations.List(ctx, &NominationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	// Written behind the service's back: the cached page is still served
	second := testutil.CreateNomination(t, env.db, category.ID, "Second", models.NominationStatusApproved)
	page, err = env.svc.Nominations.List(ctx, &NominationFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	// A different filter set is a different key
	page, err = env.svc.Nominations.List(ctx, &NominationFilter{Search: "second"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	// Voting goes through the service and invalidates every list
	_, err = env.svc.Votes.Vote(ctx, second.ID, &VoteRequest{VoterEmail: "a@b.com"}, "127.0.0.1")
	require.NoError(t, err)

	page, err = env.svc.Nominations.List(ctx, &NominationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
}

func TestNominationListKeyCoversEveryParameter(t *testing.T) {
	base := func() *NominationFilter {
		return &NominationFilter{
			PaginationParams: utils.NormalizePagination(utils.PaginationParams{}),
			Status:           models.NominationStatusApproved,
		}
	}

	keys := map[string]string{}
	variants := map[string]func(f *NominationFilter){
		"base":     func(f *NominationFilter) {},
		"category": func(f *NominationFilter) { f.CategoryID = "c" },
		"status":   func(f *NominationFilter) { f.Status = models.NominationStatusWinner },
		"country":  func(f *NominationFilter) { f.Country = "Kenya" },
		"search":   func(f *NominationFilter) { f.Search = "a&status=winner" },
		"page":     func(f *NominationFilter) { f.Page = 2 },
		"limit":    func(f *NominationFilter) { f.Limit = 50 },
		"sort":     func(f *NominationFilter) { f.Sort = "totalVotes" },
		"order":    func(f *NominationFilter) { f.Order = "asc" },
	}
	for name, mutate := range variants {
		f := base()
		mutate(f)
		key := nominationListKey(f)
		assert.True(t, strings.HasPrefix(key, nominationListPrefix))
		for other, otherKey := range keys {
			assert.NotEqual(t, otherKey, key, "%s collides with %s", name, other)
		}
		keys[name] = key
	}
}

func TestGetHidesNonPublicNominations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")

	pending := testutil.CreateNomination(t, env.db, category.ID, "Pending", models.NominationStatusPending)
	finalist := testutil.CreateNomination(t, env.db, category.ID, "Finalist", models.NominationStatusFinalist)

	_, err := env.svc.Nominations.Get(ctx, pending.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	got, err := env.svc.Nominations.Get(ctx, finalist.ID)
	require.NoError(t, err)
	assert.Equal(t, "Finalist", got.NomineeName)
	assert.Empty(t, got.NominatorEmail)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Innovation", got.Category.Name)
}

func TestAdminUpdateKeepsModerationFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")
	nomination := testutil.CreateNomination(t, env.db, category.ID, "Jane", models.NominationStatusApproved)
	require.NoError(t, env.db.Model(nomination).Update("total_votes", 7).Error)

	req := validNominationRequest(category.ID.String())
	req.NomineeName = "Jane Updated"
	updated, err := env.svc.Nominations.Update(ctx, nomination.ID, req)
	require.NoError(t, err)

	assert.Equal(t, "Jane Updated", updated.NomineeName)
	assert.Equal(t, models.NominationStatusApproved, updated.Status)
	assert.Equal(t, 7, updated.TotalVotes)
}
