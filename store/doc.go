// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the durable system of record for votes, bias entries, and
the award catalog. Queries are written once with $N placeholders and run
unchanged on PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).

# Uniqueness

The vote table carries UNIQUE (voter_id, award_id). VoteStore.Create maps
the resulting constraint violation to ErrDuplicateVote, detected from the
driver error code rather than the message.

The vote_bias table has a partial unique index on (award_id, nominee_id)
WHERE active, so BiasStore.Create fails with ErrActiveBiasExists while an
active entry exists. Entries are updated in place or deactivated, never
deleted.

# Errors

ErrNotFound, ErrDuplicateVote, ErrActiveBiasExists, and ErrBiasInactive are
answers from a healthy database. IsAnswer groups them so circuit breakers
do not count them as failures.
*/
package store
