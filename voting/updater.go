// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/lock"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
)

// Update is a pending change to one nominee's cached count.
type Update struct {
	AwardID   string
	NomineeID string
	Delta     int64
}

// Failure is an update that could not be applied.
type Failure struct {
	Update
	Err error
}

// TallyLockKey scopes the increment lock to one (award, nominee) pair.
func TallyLockKey(awardID, nomineeID string) string {
	return "tally:" + awardID + ":" + nomineeID
}

type UpdaterOptions struct {
	QueueSize int
	Workers   int
	// Timeout bounds one update, lock wait included
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Updater applies cached tally increments off the request path. Enqueue
// never blocks; a full queue drops the update. Failed updates clear the
// award's cached tally so the next read rebuilds it, and are reported on
// Failures.
type Updater struct {
	cache    *cache.Cache
	locks    *lock.Manager
	metrics  *metrics.Metrics
	timeout  time.Duration
	queue    chan Update
	failures chan Failure

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewUpdater(c *cache.Cache, locks *lock.Manager, opts UpdaterOptions) *Updater {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	u := &Updater{
		cache:    c,
		locks:    locks,
		metrics:  opts.Metrics,
		timeout:  opts.Timeout,
		queue:    make(chan Update, opts.QueueSize),
		failures: make(chan Failure, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		u.wg.Add(1)
		go u.run()
	}
	return u
}

// Enqueue schedules an update and reports whether it was accepted.
func (u *Updater) Enqueue(up Update) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.closed {
		u.count(metrics.ResultDropped)
		return false
	}
	select {
	case u.queue <- up:
		return true
	default:
		slog.Warn("tally update queue full, dropping update", "award_id", up.AwardID, "nominee_id", up.NomineeID)
		u.count(metrics.ResultDropped)
		return false
	}
}

// Failures reports updates that could not be applied. Reports are dropped
// when nobody reads them. The channel is closed by Close.
func (u *Updater) Failures() <-chan Failure {
	return u.failures
}

// Close stops accepting updates and waits for queued ones to finish.
func (u *Updater) Close() {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	close(u.queue)
	u.mu.Unlock()

	u.wg.Wait()
	close(u.failures)
}

func (u *Updater) run() {
	defer u.wg.Done()
	for up := range u.queue {
		u.process(up)
	}
}

func (u *Updater) process(up Update) {
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	applied := false
	err := u.locks.WithLock(ctx, TallyLockKey(up.AwardID, up.NomineeID), func(ctx context.Context) error {
		var err error
		_, applied, err = u.cache.IncrementTally(ctx, up.AwardID, up.NomineeID, up.Delta)
		return err
	})
	if err == nil {
		if applied {
			u.count(metrics.ResultOK)
		} else {
			// nothing cached; the next read computes from the store
			u.count(metrics.ResultSkipped)
		}
		return
	}

	slog.Warn("failed to update cached tally", "award_id", up.AwardID, "nominee_id", up.NomineeID, "error", err)
	u.count(metrics.ResultFailed)

	clearCtx, clearCancel := context.WithTimeout(context.Background(), u.timeout)
	defer clearCancel()
	if clearErr := u.cache.ClearTally(clearCtx, up.AwardID); clearErr != nil {
		slog.Error("failed to invalidate cached tally", "award_id", up.AwardID, "error", clearErr)
	}

	select {
	case u.failures <- Failure{Update: up, Err: err}:
	default:
	}
}

func (u *Updater) count(result string) {
	if u.metrics != nil {
		u.metrics.TallyUpdates.WithLabelValues(result).Inc()
	}
}
