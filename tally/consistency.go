// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/opeoladettp/yodeco-backend-sub000/breaker"
	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
)

// VerifyConsistency compares the cached raw counts of an award with the
// vote store and the cached bias overlay with the active bias entries. An
// award with nothing cached is consistent.
func (s *Service) VerifyConsistency(ctx context.Context, awardID string) (models.ConsistencyReport, error) {
	stored, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) (map[string]int64, error) {
		return s.storeCounts(ctx, awardID)
	}, nil)
	if err != nil {
		return models.ConsistencyReport{}, fmt.Errorf("count votes for %s: %w", awardID, err)
	}

	cached, err := s.cache.GetTally(ctx, awardID)
	if err != nil {
		return models.ConsistencyReport{}, fmt.Errorf("read cached tally for %s: %w", awardID, err)
	}

	report := models.ConsistencyReport{
		AwardID:           awardID,
		Cached:            len(cached.Counts) > 0,
		Discrepancies:     []models.Discrepancy{},
		BiasCached:        cached.Overlay != nil,
		BiasDiscrepancies: []models.BiasDiscrepancy{},
		CheckedAt:         s.now().UTC(),
	}
	for _, n := range stored {
		report.StoreTotal += n
	}

	if report.Cached {
		ids := make(map[string]struct{}, len(stored)+len(cached.Counts))
		for id := range stored {
			ids[id] = struct{}{}
		}
		for id, n := range cached.Counts {
			ids[id] = struct{}{}
			report.CachedTotal += n
		}
		for id := range ids {
			if stored[id] != cached.Counts[id] {
				report.Discrepancies = append(report.Discrepancies, models.Discrepancy{
					NomineeID:   id,
					StoreCount:  stored[id],
					CachedCount: cached.Counts[id],
					Difference:  cached.Counts[id] - stored[id],
				})
			}
		}
		sort.Slice(report.Discrepancies, func(i, j int) bool {
			return report.Discrepancies[i].NomineeID < report.Discrepancies[j].NomineeID
		})
	} else {
		report.CachedTotal = report.StoreTotal
	}

	if cached.Overlay != nil {
		active, err := s.activeOverlay(ctx, awardID)
		if err != nil {
			return models.ConsistencyReport{}, fmt.Errorf("list bias for %s: %w", awardID, err)
		}
		report.BiasDiscrepancies = compareOverlay(active, *cached.Overlay)
	}

	report.TotalsMatch = report.StoreTotal == report.CachedTotal
	report.Consistent = len(report.Discrepancies) == 0 && len(report.BiasDiscrepancies) == 0
	return report, nil
}

func compareOverlay(active, cached cache.Overlay) []models.BiasDiscrepancy {
	ids := make(map[string]struct{}, len(active.Amounts)+len(cached.Amounts))
	for id := range active.Amounts {
		ids[id] = struct{}{}
	}
	for id := range cached.Amounts {
		ids[id] = struct{}{}
	}

	out := []models.BiasDiscrepancy{}
	for id := range ids {
		if active.Amounts[id] == cached.Amounts[id] && active.Reasons[id] == cached.Reasons[id] {
			continue
		}
		out = append(out, models.BiasDiscrepancy{
			NomineeID:    id,
			ActiveAmount: active.Amounts[id],
			CachedAmount: cached.Amounts[id],
			ActiveReason: active.Reasons[id],
			CachedReason: cached.Reasons[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NomineeID < out[j].NomineeID })
	return out
}

// Synchronize rebuilds the cached raw counts of an award from the store.
// Unless force is set, a consistent award is left alone. The bias overlay
// is dropped and reloaded by the next read. A vote landing during the
// rebuild leaves the counts uncached rather than short.
func (s *Service) Synchronize(ctx context.Context, awardID string, force bool) (models.SyncReport, error) {
	report := models.SyncReport{AwardID: awardID}

	if !force {
		before, err := s.VerifyConsistency(ctx, awardID)
		if err != nil {
			return report, err
		}
		report.Before = &before
		if before.Consistent {
			report.Skipped = true
			report.Success = true
			report.FinishedAt = s.now().UTC()
			return report, nil
		}
	}

	if err := s.cache.ClearTally(ctx, awardID); err != nil {
		return report, fmt.Errorf("clear cached tally for %s: %w", awardID, err)
	}

	gen, err := s.cache.Generation(ctx, cache.GenerationKey(awardID))
	if err != nil {
		return report, fmt.Errorf("read tally generation for %s: %w", awardID, err)
	}
	counts, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) (map[string]int64, error) {
		return s.storeCounts(ctx, awardID)
	}, nil)
	if err != nil {
		return report, fmt.Errorf("count votes for %s: %w", awardID, err)
	}
	stored, err := s.cache.StoreCounts(ctx, awardID, gen, counts, s.ttl)
	if err != nil {
		return report, fmt.Errorf("store tally for %s: %w", awardID, err)
	}
	if !stored && len(counts) > 0 {
		slog.Info("tally changed during rebuild, left uncached", "award_id", awardID)
	}
	report.Rebuilt = true
	report.Nominees = len(counts)

	after, err := s.VerifyConsistency(ctx, awardID)
	if err != nil {
		return report, err
	}
	report.After = &after
	report.Success = after.Consistent
	report.FinishedAt = s.now().UTC()

	if report.Success {
		if s.metrics != nil {
			s.metrics.Repairs.Inc()
		}
		slog.Info("cached tally rebuilt", "award_id", awardID, "nominees", report.Nominees, "forced", force)
	} else {
		slog.Warn("cached tally still inconsistent after rebuild", "award_id", awardID, "discrepancies", len(after.Discrepancies))
	}
	return report, nil
}

// VerifyAll checks every votable award. Failures are collected per award.
func (s *Service) VerifyAll(ctx context.Context) (models.ConsistencySummary, error) {
	summary := models.ConsistencySummary{Reports: []models.ConsistencyReport{}, Errors: []models.AwardError{}}

	awards, err := s.votable(ctx)
	if err != nil {
		return summary, err
	}
	for _, a := range awards {
		report, err := s.VerifyConsistency(ctx, a.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, models.AwardError{AwardID: a.ID, Error: err.Error()})
			continue
		}
		summary.Reports = append(summary.Reports, report)
	}
	return summary, nil
}

// SynchronizeAll synchronizes every votable award.
func (s *Service) SynchronizeAll(ctx context.Context, force bool) (models.SyncSummary, error) {
	summary := models.SyncSummary{Reports: []models.SyncReport{}, Errors: []models.AwardError{}}

	awards, err := s.votable(ctx)
	if err != nil {
		return summary, err
	}
	for _, a := range awards {
		report, err := s.Synchronize(ctx, a.ID, force)
		if err != nil {
			summary.Errors = append(summary.Errors, models.AwardError{AwardID: a.ID, Error: err.Error()})
			continue
		}
		summary.Reports = append(summary.Reports, report)
	}
	return summary, nil
}

// WarmCache runs the read path for every votable award so the next reads
// are cache hits.
func (s *Service) WarmCache(ctx context.Context) (models.WarmReport, error) {
	report := models.WarmReport{Warmed: []string{}, Errors: []models.AwardError{}}

	awards, err := s.votable(ctx)
	if err != nil {
		return report, err
	}
	for _, a := range awards {
		counts, err := s.GetCounts(ctx, a.ID)
		if err != nil {
			return report, err
		}
		if counts.Source == "degraded" {
			report.Errors = append(report.Errors, models.AwardError{AwardID: a.ID, Error: "store unavailable"})
			continue
		}
		report.Warmed = append(report.Warmed, a.ID)
	}
	slog.Info("tally cache warmed", "awards", len(report.Warmed), "errors", len(report.Errors))
	return report, nil
}

func (s *Service) votable(ctx context.Context) ([]models.Award, error) {
	awards, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) ([]models.Award, error) {
		return s.catalog.ListVotable(ctx, s.now())
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("list votable awards: %w", err)
	}
	return awards, nil
}
