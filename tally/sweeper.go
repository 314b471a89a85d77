// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
)

// Sweeper periodically verifies the cached tallies of every votable award
// and, with AutoFix, rebuilds the inconsistent ones.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	autoFix  bool
	metrics  *metrics.Metrics
}

func NewSweeper(svc *Service, interval time.Duration, autoFix bool, m *metrics.Metrics) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, autoFix: autoFix, metrics: m}
}

// Run sweeps every interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		slog.Info("consistency sweeper disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("consistency sweeper started", "interval", w.interval, "autofix", w.autoFix)
	for {
		select {
		case <-ctx.Done():
			slog.Info("consistency sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep checks every votable award once. A failing award is recorded in
// the report and never stops the sweep.
func (w *Sweeper) Sweep(ctx context.Context) models.SweepReport {
	report := models.SweepReport{
		StartedAt:    w.svc.now().UTC(),
		Inconsistent: []string{},
		Repaired:     []string{},
		Errors:       []models.AwardError{},
	}

	awards, err := w.svc.votable(ctx)
	if err != nil {
		slog.Error("consistency sweep could not list awards", "error", err)
		report.Errors = append(report.Errors, models.AwardError{Error: err.Error()})
		report.FinishedAt = w.svc.now().UTC()
		return report
	}

	for _, a := range awards {
		if ctx.Err() != nil {
			break
		}
		report.Checked++
		if err := w.sweepAward(ctx, a.ID, &report); err != nil {
			slog.Warn("consistency sweep failed for award", "award_id", a.ID, "error", err)
			report.Errors = append(report.Errors, models.AwardError{AwardID: a.ID, Error: err.Error()})
		}
	}

	report.FinishedAt = w.svc.now().UTC()
	if w.metrics != nil {
		w.metrics.Sweeps.Inc()
	}
	slog.Info("consistency sweep finished",
		"checked", report.Checked,
		"inconsistent", len(report.Inconsistent),
		"repaired", len(report.Repaired),
		"errors", len(report.Errors),
		"took", report.FinishedAt.Sub(report.StartedAt))
	return report
}

func (w *Sweeper) sweepAward(ctx context.Context, awardID string, report *models.SweepReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	check, err := w.svc.VerifyConsistency(ctx, awardID)
	if err != nil {
		return err
	}
	if check.Consistent {
		return nil
	}

	report.Inconsistent = append(report.Inconsistent, awardID)
	if w.metrics != nil {
		w.metrics.Inconsistencies.Inc()
	}
	slog.Warn("cached tally inconsistent", "award_id", awardID,
		"discrepancies", len(check.Discrepancies),
		"bias_discrepancies", len(check.BiasDiscrepancies),
		"store_total", check.StoreTotal,
		"cached_total", check.CachedTotal)

	if !w.autoFix {
		return nil
	}
	sync, err := w.svc.Synchronize(ctx, awardID, true)
	if err != nil {
		return err
	}
	if sync.Success {
		report.Repaired = append(report.Repaired, awardID)
	}
	return nil
}
