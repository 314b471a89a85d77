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

// VoteStore persists votes. The UNIQUE (voter_id, award_id) constraint is
// the final guard against double voting.
type VoteStore struct {
	db *sql.DB
}

func NewVoteStore(db *sql.DB) *VoteStore {
	return &VoteStore{db: db}
}

// Create inserts v, assigning ID and CreatedAt when unset. A second vote
// for the same voter and award fails with ErrDuplicateVote.
func (s *VoteStore) Create(ctx context.Context, v *models.Vote) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote (id, voter_id, award_id, nominee_id, verified, origin_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID, v.VoterID, v.AwardID, v.NomineeID, v.Verified, nullString(v.OriginHash), v.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("voter %s award %s: %w", v.VoterID, v.AwardID, ErrDuplicateVote)
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// Get returns the vote a voter cast for an award.
func (s *VoteStore) Get(ctx context.Context, voterID, awardID string) (models.Vote, error) {
	var v models.Vote
	var origin sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, voter_id, award_id, nominee_id, verified, origin_hash, created_at
		FROM vote WHERE voter_id = $1 AND award_id = $2
	`, voterID, awardID).Scan(&v.ID, &v.VoterID, &v.AwardID, &v.NomineeID, &v.Verified, &origin, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Vote{}, fmt.Errorf("vote by %s for %s: %w", voterID, awardID, ErrNotFound)
	}
	if err != nil {
		return models.Vote{}, fmt.Errorf("query vote: %w", err)
	}
	v.OriginHash = origin.String
	return v, nil
}

// CountByNominee aggregates the organic votes of an award, highest first.
// Nominees without votes are absent.
func (s *VoteStore) CountByNominee(ctx context.Context, awardID string) ([]models.NomineeCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nominee_id, COUNT(*) AS n
		FROM vote WHERE award_id = $1
		GROUP BY nominee_id
		ORDER BY n DESC, nominee_id
	`, awardID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	defer rows.Close()

	counts := []models.NomineeCount{}
	for rows.Next() {
		var c models.NomineeCount
		if err := rows.Scan(&c.NomineeID, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
