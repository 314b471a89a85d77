// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"github.com/opeoladettp/yodeco-backend-sub000/auth"
	"github.com/opeoladettp/yodeco-backend-sub000/breaker"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
)

// Catalog resolves awards and nominees.
type Catalog interface {
	GetAward(ctx context.Context, id string) (models.Award, error)
	GetNominee(ctx context.Context, id string) (models.Nominee, error)
}

// Votes is the durable vote record.
type Votes interface {
	Get(ctx context.Context, voterID, awardID string) (models.Vote, error)
	Create(ctx context.Context, v *models.Vote) error
}

type Config struct {
	// Retries after the first attempt for transient failures
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Hints returned to callers
	SubmissionRetryAfter time.Duration
	StoreRetryAfter      time.Duration
	OriginSalt           string
}

type Deps struct {
	Catalog Catalog
	Votes   Votes
	// Breaker guards the store; nil runs without one
	Breaker *breaker.Breaker
	// Updater receives cached tally increments; nil disables them
	Updater *Updater
	Metrics *metrics.Metrics
}

// Request is one ballot. VoterID and Verified come from the caller's
// authentication layer.
type Request struct {
	VoterID       string
	AwardID       string
	NomineeID     string
	Verified      bool
	OriginAddress string
}

type Service struct {
	catalog Catalog
	votes   Votes
	breaker *breaker.Breaker
	updater *Updater
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		catalog: deps.Catalog,
		votes:   deps.Votes,
		breaker: deps.Breaker,
		updater: deps.Updater,
		metrics: deps.Metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Submit validates and records a vote. Every failure is an *Error.
//
// Checks run in order: required fields, award and window, nominee, existing
// vote. The existing-vote check is advisory; the store's uniqueness
// constraint decides races and its violation is reported as DUPLICATE_VOTE.
func (s *Service) Submit(ctx context.Context, req Request) (models.Vote, error) {
	vote, err := s.submit(ctx, req)
	if err != nil {
		e, ok := AsError(err)
		if ok {
			s.count(strings.ToLower(string(e.Kind)))
		}
		return models.Vote{}, err
	}
	s.count(metrics.ResultOK)

	if s.updater != nil {
		s.updater.Enqueue(Update{AwardID: vote.AwardID, NomineeID: vote.NomineeID, Delta: 1})
	}
	return vote, nil
}

func (s *Service) submit(ctx context.Context, req Request) (models.Vote, error) {
	var missing []string
	if req.VoterID == "" {
		missing = append(missing, "voter_id")
	}
	if req.AwardID == "" {
		missing = append(missing, "award_id")
	}
	if req.NomineeID == "" {
		missing = append(missing, "nominee_id")
	}
	if len(missing) > 0 {
		return models.Vote{}, newError(KindMissingFields, "missing required fields: "+strings.Join(missing, ", "))
	}

	op := func() (models.Vote, error) {
		if s.metrics != nil {
			s.metrics.SubmitAttempts.Inc()
		}
		vote, err := breaker.Run(ctx, s.breaker, func(ctx context.Context) (models.Vote, error) {
			return s.attempt(ctx, req)
		}, s.storeFallback)
		if err != nil {
			if _, ok := AsError(err); ok || ctx.Err() != nil {
				return models.Vote{}, backoff.Permanent(err)
			}
		}
		return vote, err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("vote submission attempt failed, retrying",
			"award_id", req.AwardID, "voter_id", req.VoterID, "retry_in", wait, "error", err)
	}

	vote, err := backoff.RetryNotifyWithData(op, backoff.WithContext(backoff.WithMaxRetries(s.backOff(), uint64(s.cfg.MaxRetries)), ctx), notify)
	if err == nil {
		return vote, nil
	}
	if _, ok := AsError(err); ok {
		return models.Vote{}, err
	}
	if ctx.Err() != nil {
		return models.Vote{}, ctx.Err()
	}

	slog.Error("vote submission failed after retries",
		"award_id", req.AwardID, "voter_id", req.VoterID, "attempts", s.cfg.MaxRetries+1, "error", err)
	e := newError(KindSubmissionFailed, "Your vote could not be recorded. Please try again shortly.")
	e.RetryAfter = s.cfg.SubmissionRetryAfter
	e.Err = err
	return models.Vote{}, e
}

// attempt runs the checks and the insert once.
func (s *Service) attempt(ctx context.Context, req Request) (models.Vote, error) {
	award, err := s.catalog.GetAward(ctx, req.AwardID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Vote{}, newError(KindAwardNotFound, "Award not found")
	}
	if err != nil {
		return models.Vote{}, err
	}
	if err := s.checkWindow(award); err != nil {
		return models.Vote{}, err
	}

	nominee, err := s.catalog.GetNominee(ctx, req.NomineeID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Vote{}, newError(KindNomineeNotFound, "Nominee not found")
	}
	if err != nil {
		return models.Vote{}, err
	}
	if nominee.AwardID != award.ID {
		return models.Vote{}, newError(KindNomineeAwardMismatch,
			fmt.Sprintf("Nominee %q is not part of award %q", nominee.Name, award.Name))
	}

	existing, err := s.votes.Get(ctx, req.VoterID, req.AwardID)
	if err == nil {
		return models.Vote{}, s.duplicate(ctx, existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Vote{}, err
	}

	vote := models.Vote{
		VoterID:    req.VoterID,
		AwardID:    req.AwardID,
		NomineeID:  req.NomineeID,
		Verified:   req.Verified,
		OriginHash: auth.HashOrigin(req.OriginAddress, s.cfg.OriginSalt),
		CreatedAt:  s.now().UTC(),
	}
	err = s.votes.Create(ctx, &vote)
	if errors.Is(err, store.ErrDuplicateVote) {
		// lost the race to a concurrent submission
		winner, getErr := s.votes.Get(ctx, req.VoterID, req.AwardID)
		if getErr != nil {
			slog.Warn("failed to load winning vote", "award_id", req.AwardID, "voter_id", req.VoterID, "error", getErr)
			return models.Vote{}, newError(KindDuplicateVote, "You have already voted in this award")
		}
		return models.Vote{}, s.duplicate(ctx, winner)
	}
	if err != nil {
		return models.Vote{}, err
	}

	slog.Info("vote recorded", "vote_id", vote.ID, "award_id", vote.AwardID, "nominee_id", vote.NomineeID, "verified", vote.Verified)
	return vote, nil
}

func (s *Service) checkWindow(award models.Award) error {
	now := s.now()
	if !award.Active {
		return newError(KindVotingNotActive, fmt.Sprintf("Voting for %q is not active", award.Name))
	}
	if award.VotingStart != nil && now.Before(*award.VotingStart) {
		e := newError(KindVotingNotStarted, fmt.Sprintf("Voting for %q opens %s", award.Name, humanize.RelTime(*award.VotingStart, now, "ago", "from now")))
		e.Boundary = award.VotingStart
		return e
	}
	if award.VotingEnd != nil && !now.Before(*award.VotingEnd) {
		e := newError(KindVotingEnded, fmt.Sprintf("Voting for %q closed %s", award.Name, humanize.RelTime(*award.VotingEnd, now, "ago", "from now")))
		e.Boundary = award.VotingEnd
		return e
	}
	return nil
}

// duplicate describes the vote already on record.
func (s *Service) duplicate(ctx context.Context, existing models.Vote) *Error {
	name := existing.NomineeID
	if n, err := s.catalog.GetNominee(ctx, existing.NomineeID); err == nil {
		name = n.Name
	}
	e := newError(KindDuplicateVote, fmt.Sprintf("You already voted for %q %s",
		name, humanize.RelTime(existing.CreatedAt, s.now(), "ago", "from now")))
	e.Existing = &existing
	return e
}

// storeFallback runs when the breaker rejects a call or the store fails.
// An open breaker ends the submission; other failures are retried.
func (s *Service) storeFallback(ctx context.Context, err error) (models.Vote, error) {
	if breaker.IsOpen(err) {
		e := newError(KindStoreUnavailable, "Voting is temporarily unavailable. Please try again shortly.")
		e.RetryAfter = s.cfg.StoreRetryAfter
		e.Err = err
		return models.Vote{}, e
	}
	return models.Vote{}, err
}

func (s *Service) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = s.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// MyVote returns the vote a voter cast for an award.
func (s *Service) MyVote(ctx context.Context, voterID, awardID string) (models.Vote, error) {
	return breaker.Run(ctx, s.breaker, func(ctx context.Context) (models.Vote, error) {
		return s.votes.Get(ctx, voterID, awardID)
	}, nil)
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.VoteSubmissions.WithLabelValues(result).Inc()
	}
}
