// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package lock grants short, TTL-bounded leases on arbitrary keys.

Acquire performs SET NX PX through the cache adapter with a random token.
When the key is held it retries after a fixed delay, up to a bounded number
of attempts, then returns ErrNotAcquired. It never waits indefinitely.

Release and Extend run compare-and-delete and compare-and-pexpire scripts:
they only succeed while the stored token equals the lease token, so a
holder whose lease expired cannot free or prolong a lock someone else now
holds. Both return ErrNotOwner in that case.

# Degraded Mode

If Redis is unreachable, the cache adapter serves the SET NX from its local
store. The lease is then marked Local, the grant is logged with
backend=local, and yodeco_lock_acquisitions_total is counted under
backend="local". Local leases exclude holders in this process only.
*/
package lock
