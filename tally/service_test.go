// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
	tu "github.com/opeoladettp/yodeco-backend-sub000/testutil"
)

type fixture struct {
	db      *sql.DB
	mr      *miniredis.Miniredis
	cache   *cache.Cache
	metrics *metrics.Metrics
	awards  *store.AwardStore
	votes   *store.VoteStore
	entries *store.BiasStore
	svc     *Service
	bias    *BiasService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := tu.SetupTestDB(t)
	mr, rdb := tu.SetupRedis(t)
	m := metrics.New()

	local := cache.NewLocalStore(0)
	t.Cleanup(local.Close)
	c := cache.New(cache.Options{Client: rdb, Local: local, Metrics: m})

	f := &fixture{
		db:      conn,
		mr:      mr,
		cache:   c,
		metrics: m,
		awards:  store.NewAwardStore(conn),
		votes:   store.NewVoteStore(conn),
		entries: store.NewBiasStore(conn),
	}
	f.svc = f.service(nil, nil)
	f.bias = NewBiasService(f.entries, f.awards, c, nil)
	return f
}

func (f *fixture) service(votes Votes, bias Bias) *Service {
	if votes == nil {
		votes = f.votes
	}
	if bias == nil {
		bias = f.entries
	}
	return NewService(Deps{
		Votes:   votes,
		Bias:    bias,
		Catalog: f.awards,
		Cache:   f.cache,
		Metrics: f.metrics,
	}, time.Hour)
}

// seed creates an award with two nominees holding 5 and 3 votes.
func (f *fixture) seed(t *testing.T) (award, n1, n2 string) {
	t.Helper()
	award = tu.CreateTestAward(t, f.db, "Best Album", tu.AwardWindow{})
	n1 = tu.AddTestNominee(t, f.db, award, "First")
	n2 = tu.AddTestNominee(t, f.db, award, "Second")
	tu.CastTestVotes(t, f.db, award, n1, 5)
	tu.CastTestVotes(t, f.db, award, n2, 3)
	return award, n1, n2
}

func totals(resp models.VoteCountsResponse) map[string]int64 {
	out := make(map[string]int64, len(resp.Counts))
	for _, c := range resp.Counts {
		out[c.NomineeID] = c.Count
	}
	return out
}

type failingVotes struct {
	Votes
	awardID string
}

func (v failingVotes) CountByNominee(ctx context.Context, awardID string) ([]models.NomineeCount, error) {
	if v.awardID == "" || v.awardID == awardID {
		return nil, errors.New("connection refused")
	}
	return v.Votes.CountByNominee(ctx, awardID)
}

type failingBias struct{}

func (failingBias) ListActive(context.Context, string) ([]models.BiasEntry, error) {
	return nil, errors.New("connection refused")
}

func TestGetCountsScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	award := tu.CreateTestAward(t, f.db, "A1", tu.AwardWindow{})
	x := tu.AddTestNominee(t, f.db, award, "X")
	tu.CastTestVotes(t, f.db, award, x, 2)

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	require.Equal(t, []models.VoteCount{{
		NomineeID:     x,
		NomineeName:   "X",
		Count:         2,
		OriginalCount: 2,
	}}, resp.Counts)
	assert.Equal(t, metrics.SourceStore, resp.Source)
	assert.Equal(t, "2", f.mr.HGet(cache.TallyKey(award), x))

	again, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceCache, again.Source)
	assert.Equal(t, resp.Counts, again.Counts)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TallyReads.WithLabelValues(metrics.SourceStore)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TallyReads.WithLabelValues(metrics.SourceCache)))
}

func TestGetCountsEmptyAward(t *testing.T) {
	f := newFixture(t)
	award := tu.CreateTestAward(t, f.db, "Empty", tu.AwardWindow{})

	resp, err := f.svc.GetCounts(context.Background(), award)
	require.NoError(t, err)
	assert.NotNil(t, resp.Counts)
	assert.Empty(t, resp.Counts)
	assert.False(t, f.mr.Exists(cache.TallyKey(award)))
}

func TestBiasOverlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, n2 := f.seed(t)

	before, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{n1: 5, n2: 3}, totals(before))

	entry, err := f.bias.Create(ctx, award, n1, 10, "jury award", "admin-1")
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(cache.TallyKey(award)), "bias write clears the cached tally")

	biased, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{n1: 15, n2: 3}, totals(biased))
	top := biased.Counts[0]
	assert.Equal(t, n1, top.NomineeID)
	assert.Equal(t, int64(5), top.OriginalCount)
	assert.Equal(t, int64(10), top.BiasAmount)
	assert.True(t, top.HasBias)
	assert.Equal(t, "jury award", top.BiasReason)
	assert.False(t, biased.Counts[1].HasBias)

	// served from cache without applying the bias twice
	cached, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceCache, cached.Source)
	assert.Equal(t, biased.Counts, cached.Counts)
	assert.Equal(t, "5", f.mr.HGet(cache.TallyKey(award), n1))

	original, err := f.svc.GetOriginalCounts(ctx, award)
	require.NoError(t, err)
	require.Len(t, original.Counts, 2)
	assert.Equal(t, int64(5), original.Counts[0].Count)
	assert.Equal(t, int64(3), original.Counts[1].Count)

	_, err = f.bias.Deactivate(ctx, entry.ID, "admin-1", "withdrawn")
	require.NoError(t, err)

	after, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{n1: 5, n2: 3}, totals(after))
	for _, c := range after.Counts {
		assert.False(t, c.HasBias)
	}
}

func TestNegativeBiasReorders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, n2 := f.seed(t)

	_, err := f.bias.Create(ctx, award, n1, -4, "duplicate ballots", "admin-1")
	require.NoError(t, err)

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	require.Len(t, resp.Counts, 2)
	assert.Equal(t, n2, resp.Counts[0].NomineeID)
	assert.Equal(t, int64(1), resp.Counts[1].Count)
}

func TestBiasOnlyNominee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, _, _ := f.seed(t)
	n3 := tu.AddTestNominee(t, f.db, award, "Third")

	_, err := f.bias.Create(ctx, award, n3, 7, "late entry", "admin-1")
	require.NoError(t, err)

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	require.Len(t, resp.Counts, 3)
	lead := resp.Counts[0]
	assert.Equal(t, n3, lead.NomineeID)
	assert.Equal(t, "Third", lead.NomineeName)
	assert.Equal(t, int64(7), lead.Count)
	assert.Equal(t, int64(0), lead.OriginalCount)
	assert.True(t, lead.HasBias)
}

func TestCacheTransparency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)
	_, err := f.bias.Create(ctx, award, n1, 2, "adjustment", "admin-1")
	require.NoError(t, err)

	cold, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	warm, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)

	assert.Equal(t, metrics.SourceStore, cold.Source)
	assert.Equal(t, metrics.SourceCache, warm.Source)
	assert.Equal(t, cold.Counts, warm.Counts)
}

func TestOverlayMissReloadsOverlayOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)
	_, err := f.bias.Create(ctx, award, n1, 1, "tiebreak", "admin-1")
	require.NoError(t, err)

	_, err = f.svc.GetCounts(ctx, award)
	require.NoError(t, err)

	// raw counts stay cached; a sentinel value proves they are not reloaded
	f.mr.HSet(cache.TallyKey(award), n1, "40")
	f.mr.Del(cache.OverlayKey(award))

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, int64(41), totals(resp)[n1])
	assert.True(t, f.mr.Exists(cache.OverlayKey(award)))
}

func TestCachedIncrementIsVisible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)

	_, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)

	tu.CastTestVotes(t, f.db, award, n1, 1)
	_, applied, err := f.cache.IncrementTally(ctx, award, n1, 1)
	require.NoError(t, err)
	require.True(t, applied)

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceCache, resp.Source)
	assert.Equal(t, int64(6), totals(resp)[n1])
}

// voteAfterCount records one more vote for nominee right after the read
// path counted the store, the way a concurrent submission would.
type voteAfterCount struct {
	Votes
	once func()
}

func (v *voteAfterCount) CountByNominee(ctx context.Context, awardID string) ([]models.NomineeCount, error) {
	rows, err := v.Votes.CountByNominee(ctx, awardID)
	if v.once != nil {
		v.once()
		v.once = nil
	}
	return rows, err
}

func TestVoteDuringRecountIsNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)

	racing := &voteAfterCount{Votes: f.votes}
	racing.once = func() {
		tu.CastTestVotes(t, f.db, award, n1, 1)
		_, applied, err := f.cache.IncrementTally(ctx, award, n1, 1)
		require.NoError(t, err)
		require.False(t, applied, "nothing cached yet")
	}
	svc := f.service(racing, nil)

	first, err := svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, int64(5), totals(first)[n1])
	assert.False(t, f.mr.Exists(cache.TallyKey(award)), "a recount that missed a vote must not be cached")

	second, err := svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceStore, second.Source)
	assert.Equal(t, int64(6), totals(second)[n1])
	assert.Equal(t, "6", f.mr.HGet(cache.TallyKey(award), n1))
}

func TestGetCountsDegraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, _, _ := f.seed(t)

	tests := []struct {
		name string
		svc  *Service
	}{
		{"vote store down", f.service(failingVotes{Votes: f.votes}, nil)},
		{"bias store down", f.service(nil, failingBias{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.mr.FlushAll()

			resp, err := tt.svc.GetCounts(ctx, award)
			require.NoError(t, err)
			assert.Equal(t, metrics.SourceDegraded, resp.Source)
			assert.NotNil(t, resp.Counts)
			assert.Empty(t, resp.Counts)
			assert.False(t, f.mr.Exists(cache.OverlayKey(award)))
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.TallyReads.WithLabelValues(metrics.SourceDegraded)))
}

func TestGetCountsServesCacheWhenStoreDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, n2 := f.seed(t)

	_, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)

	down := f.service(failingVotes{Votes: f.votes}, failingBias{})
	resp, err := down.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceCache, resp.Source)
	assert.Equal(t, map[string]int64{n1: 5, n2: 3}, totals(resp))
}

func TestGetCountsWithoutRedis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, n2 := f.seed(t)
	f.mr.SetError("connection lost")

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{n1: 5, n2: 3}, totals(resp))

	// the local store took the write-through
	again, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, metrics.SourceCache, again.Source)
}
