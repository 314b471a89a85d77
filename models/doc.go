// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateAwardRequest: name, description, active, voting window
  - AddNomineeRequest: name
  - SubmitVoteRequest: nominee_id
  - CreateBiasRequest: nominee_id, amount, reason
  - UpdateBiasRequest: amount, reason
  - DeactivateBiasRequest: reason

# Response Types

  - SubmitVoteResponse: success, vote
  - VoteCountsResponse: counts with bias overlay
  - OriginalCountsResponse: organic counts only
  - ErrorResponse: error, message
  - VoteErrorResponse: typed submission failure (kind, retryable, retry hint)

# Domain Types

  - Award: active flag and optional voting window
  - Nominee: belongs to exactly one award
  - Vote: one ballot per (voter, award)
  - BiasEntry: administrator adjustment for one (award, nominee)
  - NomineeCount: raw group-by-nominee row from the store
  - VoteCount / OriginalCount: tally rows returned to callers

# Consistency Types

ConsistencyReport, SyncReport, and SweepReport describe the result of
comparing cached tallies against the durable store and repairing them.
*/
package models
