// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connecting

Open selects the driver by type and pings the server:

	conn, err := db.Open("postgres", "postgres://...")  // github.com/lib/pq
	conn, err := db.Open("sqlite", "file:votes.db")     // modernc.org/sqlite

SQLite connections are limited to one open connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same statements run on PostgreSQL and SQLite.

# Tables

  - award: name, active flag, optional voting window
  - nominee: belongs to one award
  - vote: one row per (voter_id, award_id)
  - vote_bias: administrator adjustments with active/inactive lifecycle

# Relationships

	award 1──* nominee
	award 1──* vote
	nominee 1──* vote
	award 1──* vote_bias
	nominee 1──* vote_bias

# Constraints

  - vote UNIQUE (voter_id, award_id): the durable one-vote guarantee
  - idx_vote_bias_active: partial unique index on (award_id, nominee_id)
    WHERE active, so a second active bias for the same pair is rejected
*/
package db
