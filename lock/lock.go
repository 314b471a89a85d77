// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
)

var (
	// ErrNotAcquired is returned when the key stayed held for every attempt.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrNotOwner is returned when a lease no longer holds its key.
	ErrNotOwner = errors.New("lock not owned by lease")
)

const keyPrefix = "lock:"

// Lease is a granted lock. Token proves ownership on release and extend.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
	// Local leases were granted by the in-process store and only exclude
	// holders in this process.
	Local bool
}

type Options struct {
	TTL         time.Duration
	RetryDelay  time.Duration
	MaxAttempts int
	Metrics     *metrics.Metrics
}

type Manager struct {
	cache   *cache.Cache
	opts    Options
	now     func() time.Time
	metrics *metrics.Metrics
}

func New(c *cache.Cache, opts Options) *Manager {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Second
	}
	return &Manager{cache: c, opts: opts, now: time.Now, metrics: opts.Metrics}
}

// Acquire tries to take key, retrying with a fixed delay up to the
// configured attempt count. A ttl of zero uses the default lease TTL.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = m.opts.TTL
	}
	token := uuid.NewString()
	fullKey := keyPrefix + key

	var backend string
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		start := m.now()
		ok, b, err := m.cache.SetNX(ctx, fullKey, token, ttl)
		if err != nil {
			m.count(metrics.BackendRedis, metrics.ResultFailed)
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		backend = b

		if ok {
			m.count(backend, metrics.ResultOK)
			lease := &Lease{
				Key:       key,
				Token:     token,
				ExpiresAt: start.Add(ttl),
				Local:     backend == metrics.BackendLocal,
			}
			if lease.Local {
				slog.Warn("lock granted by local store; exclusion is process-wide only", "key", key, "backend", backend)
			}
			return lease, nil
		}

		if attempt == m.opts.MaxAttempts {
			break
		}
		if err := sleep(ctx, m.opts.RetryDelay); err != nil {
			return nil, err
		}
	}

	m.count(backend, metrics.ResultBusy)
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrNotAcquired, key, m.opts.MaxAttempts)
}

// Release frees the lease's key if the lease still owns it.
func (m *Manager) Release(ctx context.Context, lease *Lease) error {
	fullKey := keyPrefix + lease.Key

	var ok bool
	if lease.Local {
		local := m.cache.Local()
		if local == nil {
			return fmt.Errorf("release %s: %w", lease.Key, cache.ErrUnavailable)
		}
		ok = local.CompareAndDelete(fullKey, lease.Token)
	} else {
		var err error
		ok, _, err = m.cache.CompareAndDelete(ctx, fullKey, lease.Token)
		if err != nil {
			return fmt.Errorf("release %s: %w", lease.Key, err)
		}
	}

	if !ok {
		return fmt.Errorf("release %s: %w", lease.Key, ErrNotOwner)
	}
	return nil
}

// Extend makes the lease expire ttl from now, if it still owns its key.
func (m *Manager) Extend(ctx context.Context, lease *Lease, ttl time.Duration) error {
	fullKey := keyPrefix + lease.Key
	start := m.now()

	var ok bool
	if lease.Local {
		local := m.cache.Local()
		if local == nil {
			return fmt.Errorf("extend %s: %w", lease.Key, cache.ErrUnavailable)
		}
		ok = local.CompareAndExpire(fullKey, lease.Token, ttl)
	} else {
		var err error
		ok, _, err = m.cache.CompareAndExpire(ctx, fullKey, lease.Token, ttl)
		if err != nil {
			return fmt.Errorf("extend %s: %w", lease.Key, err)
		}
	}

	if !ok {
		return fmt.Errorf("extend %s: %w", lease.Key, ErrNotOwner)
	}
	lease.ExpiresAt = start.Add(ttl)
	return nil
}

// WithLock runs fn while holding key. Release failures are logged; fn's
// error is returned.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := m.Acquire(ctx, key, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Release(context.WithoutCancel(ctx), lease); err != nil {
			slog.Warn("failed to release lock", "key", key, "local", lease.Local, "error", err)
		}
	}()
	return fn(ctx)
}

func (m *Manager) count(backend, result string) {
	if m.metrics == nil {
		return
	}
	m.metrics.LockAcquisitions.WithLabelValues(backend, result).Inc()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
