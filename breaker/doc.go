// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package breaker wraps calls to external dependencies (the SQL store and
Redis) in a circuit breaker built on github.com/sony/gobreaker/v2.

The contract is run(primary, fallback):

	counts, err := breaker.Run(ctx, storeBreaker,
		func(ctx context.Context) ([]models.NomineeCount, error) {
			return votes.CountByNominee(ctx, awardID)
		},
		func(ctx context.Context, err error) ([]models.NomineeCount, error) {
			return nil, nil // store unavailable: empty result
		})

Every primary call runs with the configured per-call timeout. Errors
classified by Settings.IsExcluded (not found, duplicate key) are answers
from a healthy dependency: they are returned directly, never trip the
breaker, and never reach the fallback. After Settings.Failures consecutive
dependency failures the breaker opens for Settings.Cooldown; while open,
calls are rejected with an error wrapping ErrOpen and handed straight to the
fallback.
*/
package breaker
