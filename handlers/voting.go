// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opeoladettp/yodeco-backend-sub000/middleware"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
	"github.com/opeoladettp/yodeco-backend-sub000/voting"
)

type VotingHandler struct {
	votes *voting.Service
}

func NewVotingHandler(votes *voting.Service) *VotingHandler {
	return &VotingHandler{votes: votes}
}

// SubmitVote handles POST /awards/{id}/votes
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	// Voter identity is established upstream
	voterID := r.Header.Get("X-Voter-ID")
	if voterID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-ID header required")
		return
	}
	verified, _ := strconv.ParseBool(r.Header.Get("X-Voter-Verified"))

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, err := h.votes.Submit(r.Context(), voting.Request{
		VoterID:       voterID,
		AwardID:       r.PathValue("id"),
		NomineeID:     req.NomineeID,
		Verified:      verified,
		OriginAddress: middleware.GetClientIP(r),
	})
	if err != nil {
		writeVoteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitVoteResponse{
		Success: true,
		Vote:    vote,
	})
}

// GetMyVote handles GET /awards/{id}/my-vote
func (h *VotingHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	voterID := r.Header.Get("X-Voter-ID")
	if voterID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Voter-ID header required")
		return
	}

	vote, err := h.votes.MyVote(r.Context(), voterID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No vote recorded for this award")
		return
	}
	if err != nil {
		slog.Error("failed to query vote", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Vote lookup unavailable")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, vote)
}

var voteStatus = map[voting.Kind]int{
	voting.KindMissingFields:        http.StatusBadRequest,
	voting.KindAwardNotFound:        http.StatusNotFound,
	voting.KindVotingNotActive:      http.StatusForbidden,
	voting.KindVotingNotStarted:     http.StatusForbidden,
	voting.KindVotingEnded:          http.StatusForbidden,
	voting.KindNomineeNotFound:      http.StatusNotFound,
	voting.KindNomineeAwardMismatch: http.StatusBadRequest,
	voting.KindDuplicateVote:        http.StatusConflict,
	voting.KindStoreUnavailable:     http.StatusServiceUnavailable,
	voting.KindSubmissionFailed:     http.StatusServiceUnavailable,
}

func writeVoteError(w http.ResponseWriter, err error) {
	e, ok := voting.AsError(err)
	if !ok {
		// cancelled by the client
		slog.Warn("vote submission aborted", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Vote submission aborted")
		return
	}

	status, ok := voteStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := models.VoteErrorResponse{
		Error:     http.StatusText(status),
		Kind:      string(e.Kind),
		Message:   e.Message,
		Retryable: e.Retryable,
		Boundary:  e.Boundary,
	}
	if e.Retryable {
		resp.RetryAfterSeconds = middleware.SetRetryAfter(w, e.RetryAfter)
	}
	if e.Existing != nil {
		resp.ExistingNomineeID = e.Existing.NomineeID
		votedAt := e.Existing.CreatedAt
		resp.ExistingVotedAt = &votedAt
	}

	middleware.JSONResponse(w, status, resp)
}
