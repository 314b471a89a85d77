// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
)

// ErrOpen is returned (wrapped) when the breaker rejects a call without
// running it.
var ErrOpen = errors.New("circuit breaker open")

type Settings struct {
	Name string
	// Consecutive dependency failures that open the breaker
	Failures int
	// Time spent open before a half-open probe
	Cooldown time.Duration
	// Per-call timeout applied to the primary; zero disables it
	Timeout time.Duration
	// IsExcluded reports errors that are answers, not dependency failures
	// (not found, constraint violations). They never trip the breaker and
	// never trigger the fallback.
	IsExcluded func(error) bool
	Metrics    *metrics.Metrics
}

type Breaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker[any]
	timeout  time.Duration
	excluded func(error) bool
}

func New(s Settings) *Breaker {
	excluded := func(err error) bool {
		if errors.Is(err, context.Canceled) {
			return true
		}
		return s.IsExcluded != nil && s.IsExcluded(err)
	}

	failures := s.Failures
	if failures < 1 {
		failures = 1
	}

	b := &Breaker{name: s.Name, timeout: s.Timeout, excluded: excluded}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || excluded(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if s.Metrics != nil {
				s.Metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if s.Metrics != nil {
		s.Metrics.BreakerState.WithLabelValues(s.Name).Set(float64(gobreaker.StateClosed))
	}

	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// Run executes primary under the breaker. fallback receives the failure when
// the breaker rejects the call (wrapping ErrOpen) or when primary fails with
// a dependency error; excluded errors are returned as-is. A nil fallback
// returns the failure unchanged. A nil breaker runs primary directly and
// still falls back on any error other than cancellation.
func Run[T any](ctx context.Context, b *Breaker, primary func(ctx context.Context) (T, error), fallback func(ctx context.Context, err error) (T, error)) (T, error) {
	var zero T
	if b == nil {
		v, err := primary(ctx)
		if err == nil || fallback == nil || errors.Is(err, context.Canceled) {
			return v, err
		}
		return fallback(ctx, err)
	}

	res, err := b.cb.Execute(func() (any, error) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		return primary(callCtx)
	})
	if err == nil {
		v, _ := res.(T)
		return v, nil
	}
	if b.excluded(err) {
		v, _ := res.(T)
		return v, err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	if fallback == nil {
		return zero, err
	}
	return fallback(ctx, err)
}

// IsOpen reports whether err came from a rejected call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}
