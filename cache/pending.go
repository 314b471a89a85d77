// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/redis/go-redis/v9"
)

type pendingKey struct {
	seq  uint64
	bump bool
}

// pending holds keys mutated in the local store while Redis was
// unreachable. Redis still has their old values.
type pending struct {
	mu   sync.Mutex
	seq  uint64
	keys map[string]pendingKey
}

func (p *pending) add(bump bool, keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.keys == nil {
		p.keys = make(map[string]pendingKey)
	}
	for _, key := range keys {
		p.seq++
		p.keys[key] = pendingKey{seq: p.seq, bump: bump}
	}
}

func (p *pending) snapshot() map[string]pendingKey {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return nil
	}
	return maps.Clone(p.keys)
}

// done forgets the snapshotted keys that were not queued again meanwhile.
func (p *pending) done(snap map[string]pendingKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, s := range snap {
		if cur, ok := p.keys[key]; ok && cur.seq == s.seq {
			delete(p.keys, key)
		}
	}
}

// replay deletes the queued keys from Redis and bumps the queued counters,
// then drops the local copies so a later outage does not serve them.
func (c *Cache) replay(ctx context.Context) error {
	snap := c.pending.snapshot()
	if len(snap) == 0 {
		return nil
	}

	if _, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, p := range snap {
			if p.bump {
				pipe.Incr(ctx, key)
			} else {
				pipe.Del(ctx, key)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("replay local writes: %w", err)
	}

	for key, p := range snap {
		if p.bump {
			c.local.Incr(key)
		} else {
			c.local.Del(key)
		}
	}
	c.pending.done(snap)
	slog.Info("redis reachable again, replayed local writes", "keys", len(snap))
	return nil
}
