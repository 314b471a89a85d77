// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opeoladettp/yodeco-backend-sub000/auth"
	"github.com/opeoladettp/yodeco-backend-sub000/middleware"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
)

type AwardHandler struct {
	awards *store.AwardStore
}

func NewAwardHandler(awards *store.AwardStore) *AwardHandler {
	return &AwardHandler{awards: awards}
}

// CreateAward handles POST /admin/awards
func (h *AwardHandler) CreateAward(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAwardRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.VotingStart != nil && req.VotingEnd != nil && !req.VotingEnd.After(*req.VotingStart) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voting_end must be after voting_start")
		return
	}

	awardID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate award ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create award")
		return
	}

	award := models.Award{
		ID:          awardID,
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active == nil || *req.Active,
		VotingStart: req.VotingStart,
		VotingEnd:   req.VotingEnd,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.awards.CreateAward(r.Context(), &award); err != nil {
		slog.Error("failed to insert award", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create award")
		return
	}

	slog.Info("award created", "award_id", awardID, "admin_id", middleware.AdminID(r))

	middleware.JSONResponse(w, http.StatusCreated, models.CreateAwardResponse{
		AwardID: awardID,
	})
}

// AddNominee handles POST /admin/awards/{id}/nominees
func (h *AwardHandler) AddNominee(w http.ResponseWriter, r *http.Request) {
	awardID := r.PathValue("id")
	if awardID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "award_id is required")
		return
	}

	var req models.AddNomineeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := h.awards.GetAward(r.Context(), awardID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusNotFound, "Award not found")
			return
		}
		slog.Error("failed to query award", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	nomineeID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate nominee ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create nominee")
		return
	}

	nominee := models.Nominee{ID: nomineeID, AwardID: awardID, Name: req.Name}
	if err := h.awards.CreateNominee(r.Context(), &nominee); err != nil {
		slog.Error("failed to insert nominee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create nominee")
		return
	}

	slog.Info("nominee added", "award_id", awardID, "nominee_id", nomineeID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddNomineeResponse{
		NomineeID: nomineeID,
	})
}

// GetAward handles GET /awards/{id}
func (h *AwardHandler) GetAward(w http.ResponseWriter, r *http.Request) {
	awardID := r.PathValue("id")

	award, err := h.awards.GetAward(r.Context(), awardID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Award not found")
		return
	}
	if err != nil {
		slog.Error("failed to query award", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	nominees, err := h.awards.ListNominees(r.Context(), awardID)
	if err != nil {
		slog.Error("failed to query nominees", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AwardWithNominees{
		Award:    award,
		Nominees: nominees,
	})
}
