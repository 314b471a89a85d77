// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/lock"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	tu "github.com/opeoladettp/yodeco-backend-sub000/testutil"
)

func TestUpdaterAppliesConcurrentIncrements(t *testing.T) {
	f := newFixture(t)
	f.mr.HSet(cache.TallyKey("a1"), "n1", "0")

	for i := 0; i < 40; i++ {
		require.True(t, f.updater.Enqueue(Update{AwardID: "a1", NomineeID: "n1", Delta: 1}))
	}
	f.updater.Close()

	assert.Equal(t, "40", f.mr.HGet(cache.TallyKey("a1"), "n1"))
	assert.Equal(t, 40.0, testutil.ToFloat64(f.metrics.TallyUpdates.WithLabelValues(metrics.ResultOK)))
}

func TestUpdaterSkipsUncachedAward(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.updater.Enqueue(Update{AwardID: "a1", NomineeID: "n1", Delta: 1}))
	f.updater.Close()

	assert.False(t, f.mr.Exists(cache.TallyKey("a1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TallyUpdates.WithLabelValues(metrics.ResultSkipped)))
}

func TestUpdaterRejectsAfterClose(t *testing.T) {
	f := newFixture(t)
	f.updater.Close()

	assert.False(t, f.updater.Enqueue(Update{AwardID: "a1", NomineeID: "n1", Delta: 1}))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TallyUpdates.WithLabelValues(metrics.ResultDropped)))

	_, open := <-f.updater.Failures()
	assert.False(t, open, "failures channel closes with the updater")
}

func TestUpdaterReportsFailureAndInvalidates(t *testing.T) {
	mr, rdb := tu.SetupRedis(t)
	local := cache.NewLocalStore(0)
	t.Cleanup(local.Close)
	m := metrics.New()
	c := cache.New(cache.Options{Client: rdb, Local: local})
	locks := lock.New(c, lock.Options{TTL: time.Minute, RetryDelay: time.Millisecond, MaxAttempts: 3})
	u := NewUpdater(c, locks, UpdaterOptions{QueueSize: 4, Workers: 1, Metrics: m})
	ctx := context.Background()

	mr.HSet(cache.TallyKey("a1"), "n1", "7")

	// another holder keeps the pair locked
	_, err := locks.Acquire(ctx, TallyLockKey("a1", "n1"), 0)
	require.NoError(t, err)

	require.True(t, u.Enqueue(Update{AwardID: "a1", NomineeID: "n1", Delta: 1}))

	select {
	case failure := <-u.Failures():
		assert.Equal(t, "a1", failure.AwardID)
		assert.True(t, errors.Is(failure.Err, lock.ErrNotAcquired))
	case <-time.After(5 * time.Second):
		t.Fatal("no failure reported")
	}
	u.Close()

	tally, err := c.GetTally(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, tally.Counts, "stale tally must be dropped for rebuild")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TallyUpdates.WithLabelValues(metrics.ResultFailed)))
}

func TestTallyLockKeyIsPerNominee(t *testing.T) {
	assert.NotEqual(t, TallyLockKey("a1", "n1"), TallyLockKey("a1", "n2"))
	assert.Equal(t, "tally:a1:n1", TallyLockKey("a1", "n1"))
}
