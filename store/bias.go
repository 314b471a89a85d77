// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opeoladettp/yodeco-backend-sub000/models"
)

// BiasStore persists bias entries. Rows are never deleted; the partial
// unique index on (award_id, nominee_id) WHERE active allows one active
// entry per nominee.
type BiasStore struct {
	db *sql.DB
}

func NewBiasStore(db *sql.DB) *BiasStore {
	return &BiasStore{db: db}
}

const biasColumns = `id, award_id, nominee_id, amount, reason, active, created_by, created_at, updated_at,
	deactivated_by, deactivated_at, deactivation_reason`

// Create inserts an active entry. It fails with ErrActiveBiasExists when
// the nominee already has one.
func (s *BiasStore) Create(ctx context.Context, b *models.BiasEntry) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = b.CreatedAt
	b.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote_bias (id, award_id, nominee_id, amount, reason, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $8)
	`, b.ID, b.AwardID, b.NomineeID, b.Amount, b.Reason, b.CreatedBy, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("award %s nominee %s: %w", b.AwardID, b.NomineeID, ErrActiveBiasExists)
		}
		return fmt.Errorf("insert bias: %w", err)
	}
	return nil
}

func (s *BiasStore) Get(ctx context.Context, id string) (models.BiasEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+biasColumns+` FROM vote_bias WHERE id = $1`, id)
	b, err := scanBias(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BiasEntry{}, fmt.Errorf("bias %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.BiasEntry{}, fmt.Errorf("query bias: %w", err)
	}
	return b, nil
}

// ListActive returns the active entries of an award.
func (s *BiasStore) ListActive(ctx context.Context, awardID string) ([]models.BiasEntry, error) {
	return s.list(ctx, `SELECT `+biasColumns+` FROM vote_bias
		WHERE award_id = $1 AND active = TRUE
		ORDER BY created_at, id`, awardID)
}

// List returns every entry of an award, newest first, inactive included.
func (s *BiasStore) List(ctx context.Context, awardID string) ([]models.BiasEntry, error) {
	return s.list(ctx, `SELECT `+biasColumns+` FROM vote_bias
		WHERE award_id = $1
		ORDER BY created_at DESC, id`, awardID)
}

// Update changes the amount and reason of an active entry.
func (s *BiasStore) Update(ctx context.Context, id string, amount int64, reason string) (models.BiasEntry, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vote_bias SET amount = $1, reason = $2, updated_at = $3
		WHERE id = $4 AND active = TRUE
	`, amount, reason, time.Now().UTC(), id)
	if err != nil {
		return models.BiasEntry{}, fmt.Errorf("update bias: %w", err)
	}
	if err := s.checkChanged(ctx, res, id); err != nil {
		return models.BiasEntry{}, err
	}
	return s.Get(ctx, id)
}

// Deactivate flips an active entry to inactive and records who did it.
func (s *BiasStore) Deactivate(ctx context.Context, id, by, reason string) (models.BiasEntry, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE vote_bias
		SET active = FALSE, deactivated_by = $1, deactivated_at = $2, deactivation_reason = $3, updated_at = $4
		WHERE id = $5 AND active = TRUE
	`, by, now, nullString(reason), now, id)
	if err != nil {
		return models.BiasEntry{}, fmt.Errorf("deactivate bias: %w", err)
	}
	if err := s.checkChanged(ctx, res, id); err != nil {
		return models.BiasEntry{}, err
	}
	return s.Get(ctx, id)
}

// checkChanged explains a conditional update that touched no row.
func (s *BiasStore) checkChanged(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("bias %s: %w", id, ErrBiasInactive)
}

func (s *BiasStore) list(ctx context.Context, query string, args ...any) ([]models.BiasEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bias: %w", err)
	}
	defer rows.Close()

	entries := []models.BiasEntry{}
	for rows.Next() {
		b, err := scanBias(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bias: %w", err)
		}
		entries = append(entries, b)
	}
	return entries, rows.Err()
}

func scanBias(row scanner) (models.BiasEntry, error) {
	var b models.BiasEntry
	var by, reason sql.NullString
	var at sql.NullTime
	err := row.Scan(&b.ID, &b.AwardID, &b.NomineeID, &b.Amount, &b.Reason, &b.Active,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt, &by, &at, &reason)
	if err != nil {
		return models.BiasEntry{}, err
	}
	b.DeactivatedBy = stringPtr(by)
	b.DeactivatedAt = timePtr(at)
	b.DeactivationReason = stringPtr(reason)
	return b, nil
}
