// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the award voting API.

# Handler Types

Each handler is a struct over the services it calls:

  - AwardHandler: award and nominee catalog
  - VotingHandler: vote submission and lookup
  - ResultsHandler: tallies with and without bias
  - AdminHandler: bias entries and consistency tooling

# Vote Errors

Submission failures are written as models.VoteErrorResponse with the
failure kind:

	MISSING_FIELDS, NOMINEE_AWARD_MISMATCH     → 400
	VOTING_NOT_ACTIVE, _NOT_STARTED, _ENDED     → 403
	AWARD_NOT_FOUND, NOMINEE_NOT_FOUND          → 404
	DUPLICATE_VOTE                              → 409
	STORE_UNAVAILABLE, SUBMISSION_FAILED        → 503 with Retry-After

A duplicate carries the nominee and time of the vote on record.

# Tallies

Count reads never fail on store outages: the response is empty with
source "degraded" and status 200.
*/
package handlers
