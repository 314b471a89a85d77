// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the award voting API server.

The server records one vote per voter per award and serves per-award
tallies from a Redis cache backed by a SQL store, with administrator bias
adjustments applied on read.

# Starting the Server

	DATABASE_URL=votes.db ADMIN_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -r localhost:6379

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (-r): Redis URL or host:port; empty runs with the in-process cache only
  - SWEEP_INTERVAL, SWEEP_AUTOFIX: background consistency sweeps, repairing by default

Retry, lock, breaker, and cache tunables are listed in package cliparse.

# Architecture

  - voting: vote submission with retry, breaker, and async tally updates
  - tally: vote counts, bias administration, consistency sweeps
  - cache: Redis adapter with an in-process fallback store
  - lock: distributed locks over the cache
  - breaker: circuit breakers for Redis and the store
  - store: SQL persistence for awards, votes, and bias entries
  - handlers, router, middleware: HTTP surface
  - metrics: Prometheus collectors served on /metrics
*/
package main
