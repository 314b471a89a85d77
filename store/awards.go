// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opeoladettp/yodeco-backend-sub000/models"
)

// AwardStore reads and seeds the award catalog.
type AwardStore struct {
	db *sql.DB
}

func NewAwardStore(db *sql.DB) *AwardStore {
	return &AwardStore{db: db}
}

func (s *AwardStore) CreateAward(ctx context.Context, a *models.Award) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO award (id, name, description, active, voting_start, voting_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Name, a.Description, a.Active, nullTime(a.VotingStart), nullTime(a.VotingEnd), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert award: %w", err)
	}
	return nil
}

func (s *AwardStore) GetAward(ctx context.Context, id string) (models.Award, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, active, voting_start, voting_end, created_at
		FROM award WHERE id = $1
	`, id)
	a, err := scanAward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Award{}, fmt.Errorf("award %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Award{}, fmt.Errorf("query award: %w", err)
	}
	return a, nil
}

// ListVotable returns active awards whose voting window contains now.
func (s *AwardStore) ListVotable(ctx context.Context, now time.Time) ([]models.Award, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, active, voting_start, voting_end, created_at
		FROM award WHERE active = TRUE
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query awards: %w", err)
	}
	defer rows.Close()

	var awards []models.Award
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		// window comparison in Go: SQLite stores timestamps as text
		if a.OpenAt(now) {
			awards = append(awards, a)
		}
	}
	return awards, rows.Err()
}

func (s *AwardStore) CreateNominee(ctx context.Context, n *models.Nominee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nominee (id, award_id, name) VALUES ($1, $2, $3)
	`, n.ID, n.AwardID, n.Name)
	if err != nil {
		return fmt.Errorf("insert nominee: %w", err)
	}
	return nil
}

func (s *AwardStore) GetNominee(ctx context.Context, id string) (models.Nominee, error) {
	var n models.Nominee
	err := s.db.QueryRowContext(ctx, `
		SELECT id, award_id, name FROM nominee WHERE id = $1
	`, id).Scan(&n.ID, &n.AwardID, &n.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Nominee{}, fmt.Errorf("nominee %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Nominee{}, fmt.Errorf("query nominee: %w", err)
	}
	return n, nil
}

func (s *AwardStore) ListNominees(ctx context.Context, awardID string) ([]models.Nominee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, award_id, name FROM nominee WHERE award_id = $1 ORDER BY name, id
	`, awardID)
	if err != nil {
		return nil, fmt.Errorf("query nominees: %w", err)
	}
	defer rows.Close()

	nominees := []models.Nominee{}
	for rows.Next() {
		var n models.Nominee
		if err := rows.Scan(&n.ID, &n.AwardID, &n.Name); err != nil {
			return nil, fmt.Errorf("scan nominee: %w", err)
		}
		nominees = append(nominees, n)
	}
	return nominees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAward(row scanner) (models.Award, error) {
	var a models.Award
	var start, end sql.NullTime
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Active, &start, &end, &a.CreatedAt); err != nil {
		return models.Award{}, err
	}
	a.VotingStart = timePtr(start)
	a.VotingEnd = timePtr(end)
	return a, nil
}
