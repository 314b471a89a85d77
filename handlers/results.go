// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/opeoladettp/yodeco-backend-sub000/middleware"
	"github.com/opeoladettp/yodeco-backend-sub000/tally"
)

type ResultsHandler struct {
	tally *tally.Service
}

func NewResultsHandler(t *tally.Service) *ResultsHandler {
	return &ResultsHandler{tally: t}
}

// GetCounts handles GET /awards/{id}/counts
// A degraded tally is still a 200; clients read the source field.
func (h *ResultsHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tally.GetCounts(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Warn("tally read aborted", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Tally unavailable")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// GetOriginalCounts handles GET /awards/{id}/counts/original
func (h *ResultsHandler) GetOriginalCounts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tally.GetOriginalCounts(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Warn("tally read aborted", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Tally unavailable")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
