// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	tu "github.com/opeoladettp/yodeco-backend-sub000/testutil"
)

func TestSweepReportsWithoutFixing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)

	_, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	f.mr.HSet(cache.TallyKey(award), n1, "99")

	report := NewSweeper(f.svc, time.Minute, false, f.metrics).Sweep(ctx)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, []string{award}, report.Inconsistent)
	assert.Empty(t, report.Repaired)
	assert.Empty(t, report.Errors)
	assert.Equal(t, "99", f.mr.HGet(cache.TallyKey(award), n1))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Sweeps))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Inconsistencies))
}

func TestSweepAutoFix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)

	_, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	f.mr.HSet(cache.TallyKey(award), n1, "99")

	report := NewSweeper(f.svc, time.Minute, true, f.metrics).Sweep(ctx)
	assert.Equal(t, []string{award}, report.Inconsistent)
	assert.Equal(t, []string{award}, report.Repaired)
	assert.Equal(t, "5", f.mr.HGet(cache.TallyKey(award), n1))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Repairs))
}

func TestSweepRepairsStaleOverlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	award, n1, _ := f.seed(t)

	entry, err := f.bias.Create(ctx, award, n1, 10, "jury award", "admin-1")
	require.NoError(t, err)
	_, err = f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	_, err = f.entries.Update(ctx, entry.ID, 2, "recounted")
	require.NoError(t, err)

	report := NewSweeper(f.svc, time.Minute, true, f.metrics).Sweep(ctx)
	assert.Equal(t, []string{award}, report.Inconsistent)
	assert.Equal(t, []string{award}, report.Repaired)

	resp, err := f.svc.GetCounts(ctx, award)
	require.NoError(t, err)
	assert.Equal(t, int64(7), totals(resp)[n1])
}

func TestSweepContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good, n1, _ := f.seed(t)
	broken := tu.CreateTestAward(t, f.db, "Broken", tu.AwardWindow{})
	svc := f.service(failingVotes{Votes: f.votes, awardID: broken}, nil)

	_, err := svc.GetCounts(ctx, good)
	require.NoError(t, err)
	f.mr.HSet(cache.TallyKey(good), n1, "0")

	report := NewSweeper(svc, time.Minute, true, f.metrics).Sweep(ctx)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []string{good}, report.Repaired)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, broken, report.Errors[0].AwardID)
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewSweeper(f.svc, 10*time.Millisecond, false, f.metrics).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.Sweeps) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperDisabled(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		NewSweeper(f.svc, 0, false, f.metrics).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should return at once")
	}
}
