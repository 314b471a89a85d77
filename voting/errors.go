// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"errors"
	"fmt"
	"time"

	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
)

// Kind classifies a failed submission.
type Kind string

const (
	KindMissingFields        Kind = "MISSING_FIELDS"
	KindAwardNotFound        Kind = "AWARD_NOT_FOUND"
	KindVotingNotActive      Kind = "VOTING_NOT_ACTIVE"
	KindVotingNotStarted     Kind = "VOTING_NOT_STARTED"
	KindVotingEnded          Kind = "VOTING_ENDED"
	KindNomineeNotFound      Kind = "NOMINEE_NOT_FOUND"
	KindNomineeAwardMismatch Kind = "NOMINEE_AWARD_MISMATCH"
	KindDuplicateVote        Kind = "DUPLICATE_VOTE"
	KindStoreUnavailable     Kind = "STORE_UNAVAILABLE"
	KindSubmissionFailed     Kind = "SUBMISSION_FAILED"
)

// Kinds lists every kind in check order.
var Kinds = []Kind{
	KindMissingFields,
	KindAwardNotFound,
	KindVotingNotActive,
	KindVotingNotStarted,
	KindVotingEnded,
	KindNomineeNotFound,
	KindNomineeAwardMismatch,
	KindDuplicateVote,
	KindStoreUnavailable,
	KindSubmissionFailed,
}

// Retryable reports whether the caller may resubmit the same request.
func (k Kind) Retryable() bool {
	return k == KindStoreUnavailable || k == KindSubmissionFailed
}

// Error is a failed submission. Validation kinds are final; dependency
// kinds carry RetryAfter.
type Error struct {
	Kind       Kind
	Message    string
	Retryable  bool
	RetryAfter time.Duration
	// Boundary is the window edge for VOTING_NOT_STARTED and VOTING_ENDED.
	Boundary *time.Time
	// Existing is the recorded vote for DUPLICATE_VOTE.
	Existing *models.Vote
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Retryable: kind.Retryable()}
}

// AsError extracts the submission error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a submission error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// IsOutcome reports errors that are decisions rather than dependency
// failures: submission errors and store answers. Use it as the store
// breaker's IsExcluded.
func IsOutcome(err error) bool {
	if _, ok := AsError(err); ok {
		return true
	}
	return store.IsAnswer(err)
}
