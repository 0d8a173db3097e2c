package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptechnologies/sap-backend/internal/apperr"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/testutil"
)

func TestVoteRecordsAndCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category := testutil.CreateCategory(t, env.db, "Innovation")
	nomination := testutil.CreateNomination(t, env.db, category.ID, "Jane Doe", models.NominationStatusApproved)

	result, err := env.svc.Votes.Vote(ctx, nomination.ID, &VoteRequest{VoterEmail: "A@B.com"}, "41.210.1.1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalVotes)

	var vote models.Vote
	require.NoError(t, env.db.First(&vote, "nomination_id = ?", nomination.ID).Error)
	assert.Equal(t, "a@b.com", vote.VoterEmail)
	assert.Equal(t, "UG", vote.Country)
	assert.Equal(t, "41.210.1.1", vote.IPAddress)

	status, err := env.svc.Votes.VoteStatus(ctx, nomination.ID, " a@B.COM ")
	require.NoError(t, err)
	assert.True(t, status.HasVoted)
	assert.Equal(t, 1, status.TotalVotes)

	status, err = env.svc.Votes.VoteStatus(ctx, nomination.ID, "other@b.com")
	require.NoError(t, err)
	assert.False(t, status.HasVoted)
}

func TestVoteRejectsDuplicateNormalizedEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category := testutil.CreateCategory(t, env.db, "Innovation")
	nomination := testutil.CreateNomination(t, env.db, category.ID, "Jane Doe", models.NominationStatusApproved)

	_, err := env.svc.Votes.Vote(ctx, nomination.ID, &VoteRequest{VoterEmail: "a@b.com"}, "127.0.0.1")
	require.NoError(t, err)

	_, err = env.svc.Votes.Vote(ctx, nomination.ID, &VoteRequest{VoterEmail: "  A@B.COM"}, "127.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))
	assert.Contains(t, apperr.Message(err), "already voted")

	var reloaded models.Nomination
	require.NoError(t, env.db.First(&reloaded, "id = ?", nomination.ID).Error)
	assert.Equal(t, 1, reloaded.TotalVotes)
}

func TestVoteRequiresApprovedNomination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category := testutil.CreateCategory(t, env.db, "Innovation")

	for _, status := range []models.NominationStatus{
		models.NominationStatusPending,
		models.NominationStatusRejected,
		models.NominationStatusWinner,
		models.NominationStatusFinalist,
	} {
		nomination := testutil.CreateNomination(t, env.db, category.ID, "Nominee "+string(status), status)

		_, err := env.svc.Votes.Vote(ctx, nomination.ID, &VoteRequest{VoterEmail: "a@b.com"}, "127.0.0.1")
		require.Error(t, err, status)
		assert.True(t, errors.Is(err, apperr.ErrStateConflict), status)

		var count int64
		require.NoError(t, env.db.Model(&models.Vote{}).Where("nomination_id = ?", nomination.ID).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestVoteUnknownNomination(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Votes.Vote(context.Background(), uuid.New(), &VoteRequest{VoterEmail: "a@b.com"}, "127.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestVoteValidatesEmail(t *testing.T) {
	env := newTestEnv(t)
	category := testutil.CreateCategory(t, env.db, "Innovation")
	nomination := testutil.CreateNomination(t, env.db, category.ID, "Jane Doe", models.NominationStatusApproved)

	_, err := env.svc.Votes.Vote(context.Background(), nomination.ID, &VoteRequest{VoterEmail: "not-an-email"}, "127.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = env.svc.Votes.VoteStatus(context.Background(), nomination.ID, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestConcurrentVotesSameEmailCountOnce(t *testing.T) {
	env := newTestEnv(t)
	category := testutil.CreateCategory(t, env.db, "Innovation")
	nomination := testutil.CreateNomination(t, env.db, category.ID, "Jane Doe", models.NominationStatusApproved)

	const voters = 20
	var wg sync.WaitGroup
	var succeeded, conflicted int32

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Same address in different spellings
			email := "a@b.com"
			if i%2 == 0 {
				email = strings.ToUpper(email)
			}
			_, err := env.svc.Votes.Vote(context.Background(), nomination.ID, &VoteRequest{VoterEmail: email}, "127.0.0.1")
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case errors.Is(err, apperr.ErrStateConflict):
				atomic.AddInt32(&conflicted, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(voters-1), conflicted)

	var reloaded models.Nomination
	require.NoError(t, env.db.First(&reloaded, "id = ?", nomination.ID).Error)
	assert.Equal(t, 1, reloaded.TotalVotes)
}

func TestConcurrentVotesDistinctEmailsAllCount(t *testing.T) {
	env := newTestEnv(t)
	category := testutil.CreateCategory(t, env.db, "Innovation")
	nomination := testutil.CreateNomination(t, env.db, category.ID, "Jane Doe", models.NominationStatusApproved)

	const voters = 25
	var wg sync.WaitGroup
	var failures int32

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &VoteRequest{VoterEmail: fmt.Sprintf("voter%d@example.com", i)}
			if _, err := env.svc.Votes.Vote(context.Background(), nomination.ID, req, "127.0.0.1"); err != nil {
				atomic.AddInt32(&failures, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&failures))

	var reloaded models.Nomination
	require.NoError(t, env.db.First(&reloaded, "id = ?", nomination.ID).Error)
	assert.Equal(t, voters, reloaded.TotalVotes)

	var count int64
	require.NoError(t, env.db.Model(&models.Vote{}).Where("nomination_id = ?", nomination.ID).Count(&count).Error)
	assert.Equal(t, int64(voters), count)
}

func TestVoteInsertStatementCastsOnPostgres(t *testing.T) {
	assert.Contains(t, voteInsertStatement("postgres"), "CAST(? AS uuid)")
	assert.NotContains(t, voteInsertStatement("sqlite"), "CAST(")
	assert.Contains(t, voteInsertStatement("sqlite"), "ON CONFLICT (nomination_id, voter_email) DO NOTHING")
}
