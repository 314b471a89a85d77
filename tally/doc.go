// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally serves vote counts per award and keeps the cached copy honest.

# Read Path

Service.GetCounts reads the cached raw counts and bias overlay of an award.
A miss on the counts aggregates the vote store and writes the result back;
a miss on the overlay reloads only the active bias entries. The overlay is
added to the raw counts on every read, so cached counts are always organic
and bias is never applied twice. Results are ordered by total, highest
first, and name their Source.

If the store cannot answer a miss, the read returns an empty tally with
Source "degraded" and caches nothing.

# Bias

BiasService creates, updates, and deactivates bias entries. Entries are
never deleted and a nominee has at most one active entry. Each write clears
the award's cached tally.

# Consistency

VerifyConsistency compares cached raw counts with the store. Synchronize
rebuilds them, and the Sweeper runs both across votable awards on an
interval.
*/
package tally
