// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs one line per request with method, path, status, and duration_ms.

# Admin Authentication

RequireAdmin checks X-Admin-ID and X-Admin-Key against the HMAC derived
from the admin salt. The verified ID is available to the handler:

	mux.HandleFunc("POST /admin/sync", middleware.RequireAdmin(salt, h))
	adminID := middleware.AdminID(r)

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Retry-After is exposed to browsers so clients can honor backoff hints.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	secs := middleware.SetRetryAfter(w, 10*time.Second)

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Votes store a salted hash of it.
*/
package middleware
