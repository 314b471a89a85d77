// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	overlayLoadedField = "_loaded"
	reasonSuffix       = ":reason"
)

// TallyKey is the hash of raw organic counts for an award.
func TallyKey(awardID string) string {
	return "tally:" + awardID
}

// OverlayKey is the hash of cached bias adjustments for an award.
func OverlayKey(awardID string) string {
	return "tally:" + awardID + ":overlay"
}

// GenerationKey counts the changes to an award that a cached tally computed
// earlier would miss: cleared tallies and increments that found no hash.
func GenerationKey(awardID string) string {
	return "tally:" + awardID + ":gen"
}

// Overlay is the cached set of active bias adjustments for one award.
type Overlay struct {
	Amounts map[string]int64
	Reasons map[string]string
}

// Tally is the cached view of one award. Counts is empty on a miss; Overlay
// is nil when the bias overlay is not cached. Gen is read first and guards
// the write-through of whatever the caller recomputes on a miss.
type Tally struct {
	Counts  map[string]int64
	Overlay *Overlay
	Gen     Generation
}

// GetTally reads the raw counts and the bias overlay of an award.
func (c *Cache) GetTally(ctx context.Context, awardID string) (Tally, error) {
	gen, err := c.Generation(ctx, GenerationKey(awardID))
	if err != nil {
		return Tally{}, err
	}

	raw, err := c.HGetAll(ctx, TallyKey(awardID))
	if err != nil {
		return Tally{}, err
	}
	counts, err := decodeCounts(raw)
	if err != nil {
		return Tally{}, fmt.Errorf("decode tally %s: %w", awardID, err)
	}

	rawOverlay, err := c.HGetAll(ctx, OverlayKey(awardID))
	if err != nil {
		return Tally{}, err
	}
	overlay, err := decodeOverlay(rawOverlay)
	if err != nil {
		return Tally{}, fmt.Errorf("decode overlay %s: %w", awardID, err)
	}

	return Tally{Counts: counts, Overlay: overlay, Gen: gen}, nil
}

// StoreCounts replaces the raw counts of an award unless its generation
// moved past gen. stored is false when the write was dropped.
func (c *Cache) StoreCounts(ctx context.Context, awardID string, gen Generation, counts map[string]int64, ttl time.Duration) (bool, error) {
	fields := make(map[string]string, len(counts))
	for nomineeID, n := range counts {
		fields[nomineeID] = strconv.FormatInt(n, 10)
	}
	return c.HSetIf(ctx, GenerationKey(awardID), gen, TallyKey(awardID), fields, ttl)
}

// StoreOverlay replaces the cached bias overlay of an award unless its
// generation moved past gen. An empty overlay is still stored so that "no
// bias" is a cache hit.
func (c *Cache) StoreOverlay(ctx context.Context, awardID string, gen Generation, overlay Overlay, ttl time.Duration) (bool, error) {
	fields := map[string]string{overlayLoadedField: "1"}
	for nomineeID, amount := range overlay.Amounts {
		fields[nomineeID] = strconv.FormatInt(amount, 10)
	}
	for nomineeID, reason := range overlay.Reasons {
		fields[nomineeID+reasonSuffix] = reason
	}
	return c.HSetIf(ctx, GenerationKey(awardID), gen, OverlayKey(awardID), fields, ttl)
}

// IncrementTally adds delta to a nominee's cached count. It does nothing
// (ok is false) when the award has no cached tally, except bump the
// generation so a recompute racing this vote is not cached.
func (c *Cache) IncrementTally(ctx context.Context, awardID, nomineeID string, delta int64) (int64, bool, error) {
	return c.HIncrByIfExists(ctx, TallyKey(awardID), nomineeID, delta, GenerationKey(awardID))
}

// ClearTally drops both the counts and the overlay of an award. The
// generation is bumped first so an in-flight recompute cannot put the old
// values back.
func (c *Cache) ClearTally(ctx context.Context, awardID string) error {
	if err := c.Incr(ctx, GenerationKey(awardID)); err != nil {
		return err
	}
	return c.Del(ctx, TallyKey(awardID), OverlayKey(awardID))
}

func decodeCounts(raw map[string]string) (map[string]int64, error) {
	counts := make(map[string]int64, len(raw))
	if len(raw) == 0 {
		return counts, nil
	}
	if err := mapstructure.WeakDecode(raw, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func decodeOverlay(raw map[string]string) (*Overlay, error) {
	if _, ok := raw[overlayLoadedField]; !ok {
		return nil, nil
	}

	amounts := make(map[string]string, len(raw))
	reasons := make(map[string]string)
	for field, v := range raw {
		switch {
		case field == overlayLoadedField:
		case strings.HasSuffix(field, reasonSuffix):
			reasons[strings.TrimSuffix(field, reasonSuffix)] = v
		default:
			amounts[field] = v
		}
	}

	decoded, err := decodeCounts(amounts)
	if err != nil {
		return nil, err
	}
	return &Overlay{Amounts: decoded, Reasons: reasons}, nil
}
