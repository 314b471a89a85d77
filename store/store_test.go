// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/testutil"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres fk", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("UNIQUE constraint failed"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsUniqueViolationFromSQLite(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	nomineeID := testutil.AddTestNominee(t, conn, awardID, "Song A")

	insert := `INSERT INTO vote (id, voter_id, award_id, nominee_id, created_at) VALUES ($1, $2, $3, $4, $5)`
	now := time.Now().UTC()
	_, err := conn.Exec(insert, "v1", "u1", awardID, nomineeID, now)
	require.NoError(t, err)

	_, err = conn.Exec(insert, "v2", "u1", awardID, nomineeID, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "unique (voter, award)")

	_, err = conn.Exec(insert, "v1", "u2", awardID, nomineeID, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "primary key")

	_, err = conn.Exec(insert, "v3", nil, awardID, nomineeID, now)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err), "not null is a different constraint")
}

func TestIsAnswer(t *testing.T) {
	assert.True(t, IsAnswer(fmt.Errorf("x: %w", ErrNotFound)))
	assert.True(t, IsAnswer(ErrDuplicateVote))
	assert.True(t, IsAnswer(ErrActiveBiasExists))
	assert.True(t, IsAnswer(ErrBiasInactive))
	assert.False(t, IsAnswer(errors.New("connection reset")))
}

func TestVoteCreateAndGet(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	nomineeID := testutil.AddTestNominee(t, conn, awardID, "Song A")
	votes := NewVoteStore(conn)

	v := &models.Vote{VoterID: "u1", AwardID: awardID, NomineeID: nomineeID, Verified: true, OriginHash: "abc"}
	require.NoError(t, votes.Create(ctx, v))
	assert.NotEmpty(t, v.ID)
	assert.False(t, v.CreatedAt.IsZero())

	got, err := votes.Get(ctx, "u1", awardID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, nomineeID, got.NomineeID)
	assert.True(t, got.Verified)
	assert.Equal(t, "abc", got.OriginHash)
	assert.WithinDuration(t, v.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = votes.Get(ctx, "u2", awardID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVoteCreateDuplicate(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	n1 := testutil.AddTestNominee(t, conn, awardID, "Song A")
	n2 := testutil.AddTestNominee(t, conn, awardID, "Song B")
	votes := NewVoteStore(conn)

	require.NoError(t, votes.Create(ctx, &models.Vote{VoterID: "u1", AwardID: awardID, NomineeID: n1}))

	err := votes.Create(ctx, &models.Vote{VoterID: "u1", AwardID: awardID, NomineeID: n2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateVote))

	// the same voter can vote in another award
	other := testutil.CreateTestAward(t, conn, "Best Album", testutil.AwardWindow{})
	n3 := testutil.AddTestNominee(t, conn, other, "Album A")
	require.NoError(t, votes.Create(ctx, &models.Vote{VoterID: "u1", AwardID: other, NomineeID: n3}))
}

func TestVoteCreateConcurrentSameVoter(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	nomineeID := testutil.AddTestNominee(t, conn, awardID, "Song A")
	votes := NewVoteStore(conn)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- votes.Create(ctx, &models.Vote{VoterID: "u1", AwardID: awardID, NomineeID: nomineeID})
		}()
	}
	wg.Wait()
	close(errs)

	successes, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateVote):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
}

func TestCountByNominee(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	n1 := testutil.AddTestNominee(t, conn, awardID, "Song A")
	n2 := testutil.AddTestNominee(t, conn, awardID, "Song B")
	testutil.AddTestNominee(t, conn, awardID, "Song C")
	testutil.CastTestVotes(t, conn, awardID, n1, 3)
	testutil.CastTestVotes(t, conn, awardID, n2, 5)

	counts, err := NewVoteStore(conn).CountByNominee(ctx, awardID)
	require.NoError(t, err)
	assert.Equal(t, []models.NomineeCount{
		{NomineeID: n2, Count: 5},
		{NomineeID: n1, Count: 3},
	}, counts)

	empty, err := NewVoteStore(conn).CountByNominee(ctx, "no-such-award")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAwardLookups(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awards := NewAwardStore(conn)

	start := time.Now().Add(-time.Hour).UTC()
	a := &models.Award{ID: "a1", Name: "Best Song", Active: true, VotingStart: &start}
	require.NoError(t, awards.CreateAward(ctx, a))
	require.NoError(t, awards.CreateNominee(ctx, &models.Nominee{ID: "n1", AwardID: "a1", Name: "Song A"}))

	got, err := awards.GetAward(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Best Song", got.Name)
	assert.True(t, got.Active)
	require.NotNil(t, got.VotingStart)
	assert.WithinDuration(t, start, *got.VotingStart, time.Millisecond)
	assert.Nil(t, got.VotingEnd)

	_, err = awards.GetAward(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := awards.GetNominee(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "a1", n.AwardID)

	_, err = awards.GetNominee(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	nominees, err := awards.ListNominees(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, nominees, 1)
}

func TestListVotable(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	open := testutil.CreateTestAward(t, conn, "open", testutil.AwardWindow{})
	windowed := testutil.CreateTestAward(t, conn, "windowed", testutil.AwardWindow{Start: &past, End: &future})
	testutil.CreateTestAward(t, conn, "inactive", testutil.AwardWindow{Closed: true})
	testutil.CreateTestAward(t, conn, "ended", testutil.AwardWindow{End: &past})
	testutil.CreateTestAward(t, conn, "upcoming", testutil.AwardWindow{Start: &future})

	awards, err := NewAwardStore(conn).ListVotable(ctx, time.Now())
	require.NoError(t, err)

	var ids []string
	for _, a := range awards {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{open, windowed}, ids)
}

func TestBiasSingleActive(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	nomineeID := testutil.AddTestNominee(t, conn, awardID, "Song A")
	bias := NewBiasStore(conn)

	first := &models.BiasEntry{AwardID: awardID, NomineeID: nomineeID, Amount: 10, Reason: "jury", CreatedBy: "admin1"}
	require.NoError(t, bias.Create(ctx, first))
	assert.True(t, first.Active)

	err := bias.Create(ctx, &models.BiasEntry{AwardID: awardID, NomineeID: nomineeID, Amount: 5, Reason: "again", CreatedBy: "admin1"})
	assert.True(t, errors.Is(err, ErrActiveBiasExists))

	deactivated, err := bias.Deactivate(ctx, first.ID, "admin2", "mistake")
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	require.NotNil(t, deactivated.DeactivatedBy)
	assert.Equal(t, "admin2", *deactivated.DeactivatedBy)
	require.NotNil(t, deactivated.DeactivationReason)
	assert.Equal(t, "mistake", *deactivated.DeactivationReason)
	assert.NotNil(t, deactivated.DeactivatedAt)

	second := &models.BiasEntry{AwardID: awardID, NomineeID: nomineeID, Amount: -3, Reason: "fraud", CreatedBy: "admin1"}
	require.NoError(t, bias.Create(ctx, second))

	active, err := bias.ListActive(ctx, awardID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	all, err := bias.List(ctx, awardID)
	require.NoError(t, err)
	assert.Len(t, all, 2, "inactive entries stay as audit trail")
}

func TestBiasUpdate(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	awardID := testutil.CreateTestAward(t, conn, "Best Song", testutil.AwardWindow{})
	nomineeID := testutil.AddTestNominee(t, conn, awardID, "Song A")
	bias := NewBiasStore(conn)

	b := &models.BiasEntry{AwardID: awardID, NomineeID: nomineeID, Amount: 10, Reason: "jury", CreatedBy: "admin1"}
	require.NoError(t, bias.Create(ctx, b))

	updated, err := bias.Update(ctx, b.ID, 7, "revised")
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.Amount)
	assert.Equal(t, "revised", updated.Reason)
	assert.True(t, updated.Active)

	_, err = bias.Deactivate(ctx, b.ID, "admin1", "")
	require.NoError(t, err)

	_, err = bias.Update(ctx, b.ID, 1, "late")
	assert.True(t, errors.Is(err, ErrBiasInactive))

	_, err = bias.Deactivate(ctx, b.ID, "admin1", "")
	assert.True(t, errors.Is(err, ErrBiasInactive))

	_, err = bias.Update(ctx, "missing", 1, "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}
