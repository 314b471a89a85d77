// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/opeoladettp/yodeco-backend-sub000/breaker"
	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
)

type Votes interface {
	CountByNominee(ctx context.Context, awardID string) ([]models.NomineeCount, error)
}

type Bias interface {
	ListActive(ctx context.Context, awardID string) ([]models.BiasEntry, error)
}

type Catalog interface {
	GetAward(ctx context.Context, id string) (models.Award, error)
	GetNominee(ctx context.Context, id string) (models.Nominee, error)
	ListNominees(ctx context.Context, awardID string) ([]models.Nominee, error)
	ListVotable(ctx context.Context, now time.Time) ([]models.Award, error)
}

type Deps struct {
	Votes   Votes
	Bias    Bias
	Catalog Catalog
	Cache   *cache.Cache
	// Breaker guards the store; nil runs without one
	Breaker *breaker.Breaker
	Metrics *metrics.Metrics
}

// Service serves vote tallies from the cache, falling back to the store.
type Service struct {
	votes   Votes
	bias    Bias
	catalog Catalog
	cache   *cache.Cache
	breaker *breaker.Breaker
	metrics *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates the service. ttl bounds how long a cached tally lives.
func NewService(deps Deps, ttl time.Duration) *Service {
	return &Service{
		votes:   deps.Votes,
		bias:    deps.Bias,
		catalog: deps.Catalog,
		cache:   deps.Cache,
		breaker: deps.Breaker,
		metrics: deps.Metrics,
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetCounts returns the tally of an award with active bias applied,
// highest total first. When the store is unreachable on a cache miss the
// result is empty with Source "degraded".
func (s *Service) GetCounts(ctx context.Context, awardID string) (models.VoteCountsResponse, error) {
	resp := models.VoteCountsResponse{AwardID: awardID, Counts: []models.VoteCount{}}

	cached := s.cachedTally(ctx, awardID)
	counts, source, ok := s.counts(ctx, awardID, cached)
	if !ok {
		resp.Source = s.read(metrics.SourceDegraded)
		return resp, ctx.Err()
	}

	overlay := cached.Overlay
	if overlay == nil {
		loaded, ok := s.loadOverlay(ctx, awardID)
		if !ok {
			resp.Source = s.read(metrics.SourceDegraded)
			return resp, ctx.Err()
		}
		overlay = &loaded
		if source == metrics.SourceCache {
			source = metrics.SourceStore
		}
		stored, err := s.cache.StoreOverlay(ctx, awardID, cached.Gen, loaded, s.ttl)
		switch {
		case err != nil:
			slog.Warn("failed to cache bias overlay", "award_id", awardID, "error", err)
		case !stored:
			slog.Info("bias changed during read, overlay not cached", "award_id", awardID)
		}
	}

	names := s.nomineeNames(ctx, awardID)
	for _, id := range rankedIDs(counts, overlay.Amounts) {
		amount, hasBias := overlay.Amounts[id]
		resp.Counts = append(resp.Counts, models.VoteCount{
			NomineeID:     id,
			NomineeName:   names[id],
			Count:         counts[id] + amount,
			OriginalCount: counts[id],
			BiasAmount:    amount,
			HasBias:       hasBias,
			BiasReason:    overlay.Reasons[id],
		})
	}
	sort.SliceStable(resp.Counts, func(i, j int) bool {
		return resp.Counts[i].Count > resp.Counts[j].Count
	})

	resp.Source = s.read(source)
	return resp, nil
}

// GetOriginalCounts returns the organic tally of an award, without bias.
func (s *Service) GetOriginalCounts(ctx context.Context, awardID string) (models.OriginalCountsResponse, error) {
	resp := models.OriginalCountsResponse{AwardID: awardID, Counts: []models.OriginalCount{}}

	counts, source, ok := s.counts(ctx, awardID, s.cachedTally(ctx, awardID))
	if !ok {
		resp.Source = s.read(metrics.SourceDegraded)
		return resp, ctx.Err()
	}

	names := s.nomineeNames(ctx, awardID)
	for _, id := range rankedIDs(counts, nil) {
		resp.Counts = append(resp.Counts, models.OriginalCount{
			NomineeID:   id,
			NomineeName: names[id],
			Count:       counts[id],
		})
	}

	resp.Source = s.read(source)
	return resp, nil
}

// counts returns the raw counts from the cache or, on a miss, from the
// store with write-through. The write-through is dropped when the tally
// changed after cached was read. ok is false when the store is unavailable.
func (s *Service) counts(ctx context.Context, awardID string, cached cache.Tally) (map[string]int64, string, bool) {
	if len(cached.Counts) > 0 {
		return cached.Counts, metrics.SourceCache, true
	}

	counts, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) (map[string]int64, error) {
		return s.storeCounts(ctx, awardID)
	}, nil)
	if err != nil {
		slog.Warn("vote store unavailable, serving empty tally", "award_id", awardID, "degraded", true, "error", err)
		return nil, "", false
	}

	if len(counts) > 0 {
		stored, err := s.cache.StoreCounts(ctx, awardID, cached.Gen, counts, s.ttl)
		switch {
		case err != nil:
			slog.Warn("failed to cache tally", "award_id", awardID, "error", err)
		case !stored:
			slog.Info("tally changed during read, counts not cached", "award_id", awardID)
		}
	}
	return counts, metrics.SourceStore, true
}

func (s *Service) storeCounts(ctx context.Context, awardID string) (map[string]int64, error) {
	rows, err := s.votes.CountByNominee(ctx, awardID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.NomineeID] = r.Count
	}
	return counts, nil
}

func (s *Service) loadOverlay(ctx context.Context, awardID string) (cache.Overlay, bool) {
	overlay, err := s.activeOverlay(ctx, awardID)
	if err != nil {
		slog.Warn("bias store unavailable, serving empty tally", "award_id", awardID, "degraded", true, "error", err)
		return cache.Overlay{}, false
	}
	return overlay, true
}

// activeOverlay sums the active bias entries of an award per nominee.
func (s *Service) activeOverlay(ctx context.Context, awardID string) (cache.Overlay, error) {
	entries, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) ([]models.BiasEntry, error) {
		return s.bias.ListActive(ctx, awardID)
	}, nil)
	if err != nil {
		return cache.Overlay{}, err
	}

	overlay := cache.Overlay{
		Amounts: make(map[string]int64, len(entries)),
		Reasons: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		overlay.Amounts[e.NomineeID] += e.Amount
		overlay.Reasons[e.NomineeID] = e.Reason
	}
	return overlay, nil
}

// cachedTally treats an unreadable cache as a miss.
func (s *Service) cachedTally(ctx context.Context, awardID string) cache.Tally {
	t, err := s.cache.GetTally(ctx, awardID)
	if err != nil {
		slog.Warn("cached tally unreadable, recomputing", "award_id", awardID, "error", err)
		return cache.Tally{}
	}
	return t
}

// nomineeNames is display metadata only; a failed lookup leaves names empty.
func (s *Service) nomineeNames(ctx context.Context, awardID string) map[string]string {
	nominees, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) ([]models.Nominee, error) {
		return s.catalog.ListNominees(ctx, awardID)
	}, nil)
	if err != nil {
		slog.Warn("failed to load nominee names", "award_id", awardID, "error", err)
		return map[string]string{}
	}
	names := make(map[string]string, len(nominees))
	for _, n := range nominees {
		names[n.ID] = n.Name
	}
	return names
}

// rankedIDs orders nominees by organic count, then ID, so the final stable
// sort by total gives the same order from cache and from store.
func rankedIDs(counts, bias map[string]int64) []string {
	ids := make([]string, 0, len(counts)+len(bias))
	for id := range counts {
		ids = append(ids, id)
	}
	for id := range bias {
		if _, ok := counts[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (s *Service) read(source string) string {
	if s.metrics != nil {
		s.metrics.TallyReads.WithLabelValues(source).Inc()
	}
	return source
}
