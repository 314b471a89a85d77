// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting records votes with a one-vote-per-voter-per-award guarantee.

# Submission

Service.Submit checks, in order:

 1. voter, award, and nominee IDs are present (MISSING_FIELDS)
 2. the award exists, is active, and the voting window is open
    (AWARD_NOT_FOUND, VOTING_NOT_ACTIVE, VOTING_NOT_STARTED, VOTING_ENDED)
 3. the nominee exists and belongs to the award
    (NOMINEE_NOT_FOUND, NOMINEE_AWARD_MISMATCH)
 4. the voter has no vote for the award yet (DUPLICATE_VOTE)

Check 4 only saves a write. Two concurrent submissions can both pass it;
the store's UNIQUE (voter_id, award_id) constraint picks the winner and the
loser gets the same DUPLICATE_VOTE error, with the winning vote attached.

Store calls run through the circuit breaker. Transient failures are retried
with exponential backoff (cenkalti/backoff) up to Config.MaxRetries; after
that the caller gets SUBMISSION_FAILED with Config.SubmissionRetryAfter. An
open breaker ends the submission at once with STORE_UNAVAILABLE and
Config.StoreRetryAfter. Validation failures are never retried.

# Errors

Every failure is an *Error whose Kind is one of the ten constants. Callers
switch on Kind; Retryable and RetryAfter are filled for dependency kinds.

# Cached Tally Updates

A recorded vote is handed to the Updater, which increments the cached count
under a lock scoped to the (award, nominee) pair. Enqueue never blocks the
request. Failed updates are logged, counted, reported on Failures, and
invalidate the award's cached tally so the next read rebuilds it.
*/
package voting
