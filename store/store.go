// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateVote means the voter already has a vote for the award.
	ErrDuplicateVote = errors.New("vote already recorded for voter and award")
	// ErrActiveBiasExists means the nominee already has an active bias entry.
	ErrActiveBiasExists = errors.New("active bias already exists for nominee")
	// ErrBiasInactive means the bias entry was deactivated and is read-only.
	ErrBiasInactive = errors.New("bias entry is inactive")
)

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure from PostgreSQL or SQLite. The sqlite driver enables
// extended result codes on every connection, so the code alone decides.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// IsAnswer reports errors that describe the data rather than a failing
// database. They must not count against a circuit breaker.
func IsAnswer(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateVote) ||
		errors.Is(err, ErrActiveBiasExists) ||
		errors.Is(err, ErrBiasInactive)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
