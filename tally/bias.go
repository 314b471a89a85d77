// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opeoladettp/yodeco-backend-sub000/breaker"
	"github.com/opeoladettp/yodeco-backend-sub000/cache"
	"github.com/opeoladettp/yodeco-backend-sub000/models"
	"github.com/opeoladettp/yodeco-backend-sub000/store"
)

// BiasKind classifies a rejected bias operation.
type BiasKind string

const (
	BiasInvalid          BiasKind = "BIAS_INVALID"
	BiasNotFound         BiasKind = "BIAS_NOT_FOUND"
	BiasConflict         BiasKind = "BIAS_CONFLICT"
	BiasInactive         BiasKind = "BIAS_INACTIVE"
	NomineeNotFound      BiasKind = "NOMINEE_NOT_FOUND"
	NomineeAwardMismatch BiasKind = "NOMINEE_AWARD_MISMATCH"
	AwardNotFound        BiasKind = "AWARD_NOT_FOUND"
)

type BiasError struct {
	Kind    BiasKind
	Message string
	Err     error
}

func (e *BiasError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BiasError) Unwrap() error {
	return e.Err
}

// AsBiasError extracts the bias error from err.
func AsBiasError(err error) (*BiasError, bool) {
	var e *BiasError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// BiasEntries is the durable bias record.
type BiasEntries interface {
	Create(ctx context.Context, b *models.BiasEntry) error
	Get(ctx context.Context, id string) (models.BiasEntry, error)
	ListActive(ctx context.Context, awardID string) ([]models.BiasEntry, error)
	List(ctx context.Context, awardID string) ([]models.BiasEntry, error)
	Update(ctx context.Context, id string, amount int64, reason string) (models.BiasEntry, error)
	Deactivate(ctx context.Context, id, by, reason string) (models.BiasEntry, error)
}

// BiasService administers bias entries. Every successful write drops the
// award's cached tally; the next read rebuilds it with the new overlay.
type BiasService struct {
	entries BiasEntries
	catalog Catalog
	cache   *cache.Cache
	breaker *breaker.Breaker
}

func NewBiasService(entries BiasEntries, catalog Catalog, c *cache.Cache, b *breaker.Breaker) *BiasService {
	return &BiasService{entries: entries, catalog: catalog, cache: c, breaker: b}
}

// Create adds an active entry for a nominee of the award. A nominee with
// an active entry must be updated instead.
func (s *BiasService) Create(ctx context.Context, awardID, nomineeID string, amount int64, reason, by string) (models.BiasEntry, error) {
	if err := validateBias(amount, reason); err != nil {
		return models.BiasEntry{}, err
	}
	if strings.TrimSpace(nomineeID) == "" {
		return models.BiasEntry{}, &BiasError{Kind: BiasInvalid, Message: "nominee_id is required"}
	}

	if _, err := call(ctx, s.breaker, func(ctx context.Context) (models.Award, error) {
		return s.catalog.GetAward(ctx, awardID)
	}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.BiasEntry{}, &BiasError{Kind: AwardNotFound, Message: "award not found", Err: err}
		}
		return models.BiasEntry{}, err
	}

	nominee, err := call(ctx, s.breaker, func(ctx context.Context) (models.Nominee, error) {
		return s.catalog.GetNominee(ctx, nomineeID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.BiasEntry{}, &BiasError{Kind: NomineeNotFound, Message: "nominee not found", Err: err}
		}
		return models.BiasEntry{}, err
	}
	if nominee.AwardID != awardID {
		return models.BiasEntry{}, &BiasError{Kind: NomineeAwardMismatch, Message: "nominee does not belong to this award"}
	}

	entry := models.BiasEntry{
		AwardID:   awardID,
		NomineeID: nomineeID,
		Amount:    amount,
		Reason:    strings.TrimSpace(reason),
		CreatedBy: by,
	}
	if _, err := call(ctx, s.breaker, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.entries.Create(ctx, &entry)
	}); err != nil {
		if errors.Is(err, store.ErrActiveBiasExists) {
			return models.BiasEntry{}, &BiasError{
				Kind:    BiasConflict,
				Message: "nominee already has an active bias entry; update or deactivate it",
				Err:     err,
			}
		}
		return models.BiasEntry{}, err
	}

	s.invalidate(ctx, awardID)
	slog.Info("bias created", "bias_id", entry.ID, "award_id", awardID, "nominee_id", nomineeID, "amount", amount, "by", by)
	return entry, nil
}

// Update changes the amount and reason of an active entry.
func (s *BiasService) Update(ctx context.Context, id string, amount int64, reason string) (models.BiasEntry, error) {
	if err := validateBias(amount, reason); err != nil {
		return models.BiasEntry{}, err
	}

	entry, err := call(ctx, s.breaker, func(ctx context.Context) (models.BiasEntry, error) {
		return s.entries.Update(ctx, id, amount, strings.TrimSpace(reason))
	})
	if err != nil {
		return models.BiasEntry{}, entryError(err)
	}

	s.invalidate(ctx, entry.AwardID)
	slog.Info("bias updated", "bias_id", id, "award_id", entry.AwardID, "amount", amount)
	return entry, nil
}

// Deactivate retires an active entry. The row is kept for audit.
func (s *BiasService) Deactivate(ctx context.Context, id, by, reason string) (models.BiasEntry, error) {
	entry, err := call(ctx, s.breaker, func(ctx context.Context) (models.BiasEntry, error) {
		return s.entries.Deactivate(ctx, id, by, strings.TrimSpace(reason))
	})
	if err != nil {
		return models.BiasEntry{}, entryError(err)
	}

	s.invalidate(ctx, entry.AwardID)
	slog.Info("bias deactivated", "bias_id", id, "award_id", entry.AwardID, "by", by)
	return entry, nil
}

// List returns the active entries of an award, or every entry when all is
// set.
func (s *BiasService) List(ctx context.Context, awardID string, all bool) ([]models.BiasEntry, error) {
	return call(ctx, s.breaker, func(ctx context.Context) ([]models.BiasEntry, error) {
		if all {
			return s.entries.List(ctx, awardID)
		}
		return s.entries.ListActive(ctx, awardID)
	})
}

// invalidate drops the cached tally and bumps its generation. While Redis
// is down both land in the local store and are replayed against Redis once
// it answers, so no read after recovery sees the old overlay.
func (s *BiasService) invalidate(ctx context.Context, awardID string) {
	if err := s.cache.ClearTally(ctx, awardID); err != nil {
		slog.Warn("failed to clear cached tally after bias change", "award_id", awardID, "error", err)
	}
}

func validateBias(amount int64, reason string) error {
	if amount == 0 {
		return &BiasError{Kind: BiasInvalid, Message: "amount must be non-zero"}
	}
	if strings.TrimSpace(reason) == "" {
		return &BiasError{Kind: BiasInvalid, Message: "reason is required"}
	}
	return nil
}

func entryError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &BiasError{Kind: BiasNotFound, Message: "bias entry not found", Err: err}
	case errors.Is(err, store.ErrBiasInactive):
		return &BiasError{Kind: BiasInactive, Message: "bias entry is inactive", Err: err}
	}
	return err
}

func call[T any](ctx context.Context, b *breaker.Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	return breaker.Run(ctx, b, fn, nil)
}
