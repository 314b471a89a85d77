// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cache is the adapter between the vote engine and Redis.

Every operation is attempted against Redis through a circuit breaker. When
Redis errors, times out, or the breaker is open, the operation is served by
an injected LocalStore instead and the fallback is logged with
backend=local and counted in yodeco_cache_fallbacks_total. Callers never
see a transport error: they get a result, or ErrUnavailable when no local
store is configured.

# Local Store

LocalStore is an in-process map built on imcache. Entries carry a TTL,
expired entries are invisible immediately, and a background cleaner evicts
them. It is only consistent within a single process.

# Replay

A write served by the local store leaves Redis with the old value. The
affected keys are queued, and the next command that reaches Redis first
deletes them there (counters are bumped instead). A bias change made during
an outage is therefore visible as soon as Redis answers again. The queue
lives in one process; other instances rely on the consistency sweep.

# Tally Layout

Each award owns two hashes and a counter:

	tally:{award}           nominee -> raw organic count
	tally:{award}:overlay   nominee -> bias amount
	                        nominee:reason -> bias reason
	                        _loaded -> 1
	tally:{award}:gen       bumped by ClearTally and by missed increments

IncrementTally only touches a tally hash that already exists, so an evicted
tally is rebuilt from the store on the next read instead of restarting
from one vote. A rebuild captures the counter in GetTally before reading
the store, and StoreCounts and StoreOverlay write only while it is
unchanged, so a vote or bias change that lands mid-rebuild is never
overwritten by the older result.
*/
package cache
