// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opeoladettp/yodeco-backend-sub000/middleware"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/tally"
)

// AdminHandler serves bias administration and consistency tooling. Every
// route is wrapped in middleware.RequireAdmin.
type AdminHandler struct {
	bias  *tally.BiasService
	tally *tally.Service
}

func NewAdminHandler(bias *tally.BiasService, t *tally.Service) *AdminHandler {
	return &AdminHandler{bias: bias, tally: t}
}

// ListBias handles GET /admin/awards/{id}/bias[?all=true]
func (h *AdminHandler) ListBias(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	entries, err := h.bias.List(r.Context(), r.PathValue("id"), all)
	if err != nil {
		writeBiasError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entries)
}

// CreateBias handles POST /admin/awards/{id}/bias
func (h *AdminHandler) CreateBias(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBiasRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	entry, err := h.bias.Create(r.Context(), r.PathValue("id"), req.NomineeID, req.Amount, req.Reason, middleware.AdminID(r))
	if err != nil {
		writeBiasError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, entry)
}

// UpdateBias handles PUT /admin/bias/{id}
func (h *AdminHandler) UpdateBias(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBiasRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	entry, err := h.bias.Update(r.Context(), r.PathValue("id"), req.Amount, req.Reason)
	if err != nil {
		writeBiasError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry)
}

// DeactivateBias handles POST /admin/bias/{id}/deactivate
// The body is optional.
func (h *AdminHandler) DeactivateBias(w http.ResponseWriter, r *http.Request) {
	var req models.DeactivateBiasRequest
	if r.ContentLength > 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	entry, err := h.bias.Deactivate(r.Context(), r.PathValue("id"), middleware.AdminID(r), req.Reason)
	if err != nil {
		writeBiasError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry)
}

// Consistency handles GET /admin/awards/{id}/consistency
func (h *AdminHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.tally.VerifyConsistency(r.Context(), r.PathValue("id"))
	if err != nil {
		storeUnavailable(w, "consistency check failed", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, report)
}

// Sync handles POST /admin/awards/{id}/sync[?force=true]
func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	report, err := h.tally.Synchronize(r.Context(), r.PathValue("id"), force)
	if err != nil {
		storeUnavailable(w, "synchronization failed", err)
		return
	}
	slog.Info("tally synchronized by admin", "award_id", report.AwardID, "admin_id", middleware.AdminID(r), "forced", force, "skipped", report.Skipped)
	middleware.JSONResponse(w, http.StatusOK, report)
}

// ConsistencyAll handles GET /admin/consistency
func (h *AdminHandler) ConsistencyAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tally.VerifyAll(r.Context())
	if err != nil {
		storeUnavailable(w, "consistency check failed", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, summary)
}

// SyncAll handles POST /admin/sync[?force=true]
func (h *AdminHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	summary, err := h.tally.SynchronizeAll(r.Context(), force)
	if err != nil {
		storeUnavailable(w, "synchronization failed", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, summary)
}

// WarmCache handles POST /admin/cache/warm
func (h *AdminHandler) WarmCache(w http.ResponseWriter, r *http.Request) {
	report, err := h.tally.WarmCache(r.Context())
	if err != nil {
		storeUnavailable(w, "cache warming failed", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, report)
}

var biasStatus = map[tally.BiasKind]int{
	tally.BiasInvalid:          http.StatusBadRequest,
	tally.BiasNotFound:         http.StatusNotFound,
	tally.BiasConflict:         http.StatusConflict,
	tally.BiasInactive:         http.StatusConflict,
	tally.NomineeNotFound:      http.StatusNotFound,
	tally.NomineeAwardMismatch: http.StatusBadRequest,
	tally.AwardNotFound:        http.StatusNotFound,
}

func writeBiasError(w http.ResponseWriter, err error) {
	e, ok := tally.AsBiasError(err)
	if !ok {
		storeUnavailable(w, "bias operation failed", err)
		return
	}
	status, ok := biasStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	middleware.JSONResponse(w, status, models.ErrorResponse{
		Error:   string(e.Kind),
		Message: e.Message,
	})
}

func storeUnavailable(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Store unavailable")
}
