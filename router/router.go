// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/opeoladettp/yodeco-backend-sub000/cliparse"
	"github.com/opeoladettp/yodeco-backend-sub000/handlers"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
	"github.com/opeoladettp/yodeco-backend-sub000/middleware"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
	"github.com/opeoladettp/yodeco-backend-sub000/tally"
	"github.com/opeoladettp/yodeco-backend-sub000/voting"
)

// Services are the dependencies the routes are served from.
type Services struct {
	Awards  *store.AwardStore
	Voting  *voting.Service
	Tally   *tally.Service
	Bias    *tally.BiasService
	Metrics *metrics.Metrics
	// Ping reports whether the durable store is reachable; nil skips it
	Ping func(ctx context.Context) error
}

func NewRouter(cfg cliparse.Config, s Services) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	awardHandler := handlers.NewAwardHandler(s.Awards)
	votingHandler := handlers.NewVotingHandler(s.Voting)
	resultsHandler := handlers.NewResultsHandler(s.Tally)
	adminHandler := handlers.NewAdminHandler(s.Bias, s.Tally)

	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(cfg.AdminKeySalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if s.Ping != nil {
			if err := s.Ping(r.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("store unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	// Voting (voter identity from the upstream auth layer)
	mux.HandleFunc("POST /awards/{id}/votes", middleware.WithLogging(votingHandler.SubmitVote))
	mux.HandleFunc("GET /awards/{id}/my-vote", middleware.WithLogging(votingHandler.GetMyVote))

	// Awards and tallies (public)
	mux.HandleFunc("GET /awards/{id}", middleware.WithLogging(awardHandler.GetAward))
	mux.HandleFunc("GET /awards/{id}/counts", middleware.WithLogging(resultsHandler.GetCounts))
	mux.HandleFunc("GET /awards/{id}/counts/original", middleware.WithLogging(resultsHandler.GetOriginalCounts))

	// Catalog administration
	mux.HandleFunc("POST /admin/awards", admin(awardHandler.CreateAward))
	mux.HandleFunc("POST /admin/awards/{id}/nominees", admin(awardHandler.AddNominee))

	// Bias administration
	mux.HandleFunc("GET /admin/awards/{id}/bias", admin(adminHandler.ListBias))
	mux.HandleFunc("POST /admin/awards/{id}/bias", admin(adminHandler.CreateBias))
	mux.HandleFunc("PUT /admin/bias/{id}", admin(adminHandler.UpdateBias))
	mux.HandleFunc("POST /admin/bias/{id}/deactivate", admin(adminHandler.DeactivateBias))

	// Consistency tooling
	mux.HandleFunc("GET /admin/awards/{id}/consistency", admin(adminHandler.Consistency))
	mux.HandleFunc("POST /admin/awards/{id}/sync", admin(adminHandler.Sync))
	mux.HandleFunc("GET /admin/consistency", admin(adminHandler.ConsistencyAll))
	mux.HandleFunc("POST /admin/sync", admin(adminHandler.SyncAll))
	mux.HandleFunc("POST /admin/cache/warm", admin(adminHandler.WarmCache))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("yodeco votes API v1"))
	})

	return mux
}
