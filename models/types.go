package models

import "time"

// Request types

type CreateAwardRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Active      *bool      `json:"active,omitempty"`
	VotingStart *time.Time `json:"voting_start,omitempty"`
	VotingEnd   *time.Time `json:"voting_end,omitempty"`
}

type AddNomineeRequest struct {
	Name string `json:"name"`
}

type SubmitVoteRequest struct {
	NomineeID string `json:"nominee_id"`
}

type CreateBiasRequest struct {
	NomineeID string `json:"nominee_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

type UpdateBiasRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type DeactivateBiasRequest struct {
	Reason string `json:"reason"`
}

// Response types

type CreateAwardResponse struct {
	AwardID string `json:"award_id"`
}

type AddNomineeResponse struct {
	NomineeID string `json:"nominee_id"`
}

type SubmitVoteResponse struct {
	Success bool `json:"success"`
	Vote    Vote `json:"vote"`
}

// VoteCountsResponse is a tally with bias applied. Source is cache, store,
// or degraded (store unavailable, counts empty).
type VoteCountsResponse struct {
	AwardID string      `json:"award_id"`
	Counts  []VoteCount `json:"counts"`
	Source  string      `json:"source"`
}

type OriginalCountsResponse struct {
	AwardID string          `json:"award_id"`
	Counts  []OriginalCount `json:"counts"`
	Source  string          `json:"source"`
}

type ConsistencySummary struct {
	Reports []ConsistencyReport `json:"reports"`
	Errors  []AwardError        `json:"errors"`
}

type SyncSummary struct {
	Reports []SyncReport `json:"reports"`
	Errors  []AwardError `json:"errors"`
}

type WarmReport struct {
	Warmed []string     `json:"warmed"`
	Errors []AwardError `json:"errors"`
}

// Domain types

type Award struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Active      bool       `json:"active"`
	VotingStart *time.Time `json:"voting_start,omitempty"`
	VotingEnd   *time.Time `json:"voting_end,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OpenAt reports whether the award accepts votes at t.
func (a Award) OpenAt(t time.Time) bool {
	if !a.Active {
		return false
	}
	if a.VotingStart != nil && t.Before(*a.VotingStart) {
		return false
	}
	if a.VotingEnd != nil && !t.Before(*a.VotingEnd) {
		return false
	}
	return true
}

type Nominee struct {
	ID      string `json:"id"`
	AwardID string `json:"award_id"`
	Name    string `json:"name"`
}

type AwardWithNominees struct {
	Award    Award     `json:"award"`
	Nominees []Nominee `json:"nominees"`
}

type Vote struct {
	ID         string    `json:"id"`
	VoterID    string    `json:"voter_id"`
	AwardID    string    `json:"award_id"`
	NomineeID  string    `json:"nominee_id"`
	Verified   bool      `json:"verified"`
	OriginHash string    `json:"-"` // Never expose in JSON
	CreatedAt  time.Time `json:"created_at"`
}

type BiasEntry struct {
	ID                 string     `json:"id"`
	AwardID            string     `json:"award_id"`
	NomineeID          string     `json:"nominee_id"`
	Amount             int64      `json:"amount"`
	Reason             string     `json:"reason"`
	Active             bool       `json:"active"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeactivatedBy      *string    `json:"deactivated_by,omitempty"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	DeactivationReason *string    `json:"deactivation_reason,omitempty"`
}

// NomineeCount is one row of the store's group-by-nominee aggregation.
type NomineeCount struct {
	NomineeID string `json:"nominee_id"`
	Count     int64  `json:"count"`
}

// VoteCount is a nominee tally with the bias overlay applied.
type VoteCount struct {
	NomineeID     string `json:"nominee_id"`
	NomineeName   string `json:"nominee_name"`
	Count         int64  `json:"count"`
	OriginalCount int64  `json:"original_count"`
	BiasAmount    int64  `json:"bias_amount"`
	HasBias       bool   `json:"has_bias"`
	BiasReason    string `json:"bias_reason,omitempty"`
}

type OriginalCount struct {
	NomineeID   string `json:"nominee_id"`
	NomineeName string `json:"nominee_name"`
	Count       int64  `json:"count"`
}

// Consistency types

type Discrepancy struct {
	NomineeID   string `json:"nominee_id"`
	StoreCount  int64  `json:"store_count"`
	CachedCount int64  `json:"cached_count"`
	Difference  int64  `json:"difference"` // cached - store
}

// BiasDiscrepancy is a nominee whose cached overlay disagrees with the
// active bias entries.
type BiasDiscrepancy struct {
	NomineeID    string `json:"nominee_id"`
	ActiveAmount int64  `json:"active_amount"`
	CachedAmount int64  `json:"cached_amount"`
	ActiveReason string `json:"active_reason,omitempty"`
	CachedReason string `json:"cached_reason,omitempty"`
}

type ConsistencyReport struct {
	AwardID           string            `json:"award_id"`
	Consistent        bool              `json:"consistent"`
	Cached            bool              `json:"cached"`
	StoreTotal        int64             `json:"store_total"`
	CachedTotal       int64             `json:"cached_total"`
	TotalsMatch       bool              `json:"totals_match"`
	Discrepancies     []Discrepancy     `json:"discrepancies"`
	BiasCached        bool              `json:"bias_cached"`
	BiasDiscrepancies []BiasDiscrepancy `json:"bias_discrepancies"`
	CheckedAt         time.Time         `json:"checked_at"`
}

type SyncReport struct {
	AwardID    string             `json:"award_id"`
	Skipped    bool               `json:"skipped"` // already consistent, nothing rebuilt
	Rebuilt    bool               `json:"rebuilt"`
	Success    bool               `json:"success"`
	Nominees   int                `json:"nominees"`
	Before     *ConsistencyReport `json:"before,omitempty"`
	After      *ConsistencyReport `json:"after,omitempty"`
	FinishedAt time.Time          `json:"finished_at"`
}

type AwardError struct {
	AwardID string `json:"award_id"`
	Error   string `json:"error"`
}

type SweepReport struct {
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Checked      int          `json:"checked"`
	Inconsistent []string     `json:"inconsistent"`
	Repaired     []string     `json:"repaired"`
	Errors       []AwardError `json:"errors"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// VoteErrorResponse carries a typed submission failure.
type VoteErrorResponse struct {
	Error             string     `json:"error"`
	Kind              string     `json:"kind"`
	Message           string     `json:"message"`
	Retryable         bool       `json:"retryable"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	Boundary          *time.Time `json:"boundary,omitempty"`
	ExistingNomineeID string     `json:"existing_nominee_id,omitempty"`
	ExistingVotedAt   *time.Time `json:"existing_voted_at,omitempty"`
}
