// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the award voting API.

# Route Registration

NewRouter creates a configured http.ServeMux from the service graph:

	mux := router.NewRouter(cfg, router.Services{
		Awards: awards,
		Voting: votingSvc,
		Tally:  tallySvc,
		Bias:   biasSvc,
		Ping:   db.PingContext,
	})

# Endpoints

Health and metrics:

	GET /health  - 503 when Ping fails
	GET /metrics - Prometheus collectors (when Metrics is set)

Voting (voter identity from X-Voter-ID, set by the upstream auth layer):

	POST /awards/{id}/votes   - Submit a vote
	GET  /awards/{id}/my-vote - The caller's vote

Awards and tallies (public):

	GET /awards/{id}                 - Award and nominees
	GET /awards/{id}/counts          - Tally with bias applied
	GET /awards/{id}/counts/original - Organic tally

Administration (requires X-Admin-ID and X-Admin-Key):

	POST /admin/awards                    - Create award
	POST /admin/awards/{id}/nominees      - Add nominee
	GET  /admin/awards/{id}/bias          - List bias entries (?all=true)
	POST /admin/awards/{id}/bias          - Create bias entry
	PUT  /admin/bias/{id}                 - Update bias entry
	POST /admin/bias/{id}/deactivate      - Retire bias entry
	GET  /admin/awards/{id}/consistency   - Compare cache and store
	POST /admin/awards/{id}/sync          - Rebuild cached tally (?force=true)
	GET  /admin/consistency               - Compare every votable award
	POST /admin/sync                      - Rebuild every votable award
	POST /admin/cache/warm                - Preload votable tallies
*/
package router
