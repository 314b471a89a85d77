// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/erni27/imcache"
)

type localItem struct {
	value     string
	hash      map[string]string
	expiresAt time.Time // zero means no expiry
}

// LocalStore is the in-process stand-in for Redis. Entries carry their own
// TTL; expired entries are invisible immediately and evicted by the cleaner.
// It is only consistent within one process.
type LocalStore struct {
	mu    sync.Mutex
	items *imcache.Cache[string, localItem]
	now   func() time.Time
}

// NewLocalStore creates a store that evicts expired entries every
// cleanupInterval (no background cleaner when zero).
func NewLocalStore(cleanupInterval time.Duration) *LocalStore {
	var opts []imcache.Option[string, localItem]
	if cleanupInterval > 0 {
		opts = append(opts, imcache.WithCleanerOption[string, localItem](cleanupInterval))
	}
	return &LocalStore{
		items: imcache.New[string, localItem](opts...),
		now:   time.Now,
	}
}

// Close stops the background cleaner.
func (s *LocalStore) Close() {
	s.items.Close()
}

// get must be called with mu held.
func (s *LocalStore) get(key string) (localItem, bool) {
	item, ok := s.items.Get(key)
	if !ok {
		return localItem{}, false
	}
	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		s.items.Remove(key)
		return localItem{}, false
	}
	return item, true
}

// put must be called with mu held.
func (s *LocalStore) put(key string, item localItem) {
	if item.expiresAt.IsZero() {
		s.items.Set(key, item, imcache.WithNoExpiration())
		return
	}
	remaining := item.expiresAt.Sub(s.now())
	if remaining <= 0 {
		s.items.Remove(key)
		return
	}
	s.items.Set(key, item, imcache.WithExpiration(remaining))
}

func (s *LocalStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *LocalStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.get(key)
	if !ok || item.hash != nil {
		return "", false
	}
	return item.value, true
}

// SetNX stores value only if key is absent.
func (s *LocalStore) SetNX(key, value string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(key); ok {
		return false
	}
	s.put(key, localItem{value: value, expiresAt: s.expiry(ttl)})
	return true
}

// CompareAndDelete deletes key only if it currently holds value.
func (s *LocalStore) CompareAndDelete(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.get(key)
	if !ok || item.hash != nil || item.value != value {
		return false
	}
	s.items.Remove(key)
	return true
}

// CompareAndExpire resets the TTL of key only if it currently holds value.
func (s *LocalStore) CompareAndExpire(key, value string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.get(key)
	if !ok || item.hash != nil || item.value != value {
		return false
	}
	item.expiresAt = s.expiry(ttl)
	s.put(key, item)
	return true
}

// Incr bumps the counter at key, creating it at 1.
func (s *LocalStore) Incr(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.incrCounter(key)
}

// incrCounter must be called with mu held.
func (s *LocalStore) incrCounter(key string) int64 {
	item, ok := s.get(key)
	if !ok || item.hash != nil {
		item = localItem{}
	}
	n, _ := strconv.ParseInt(item.value, 10, 64)
	n++
	item.value = strconv.FormatInt(n, 10)
	s.put(key, item)
	return n
}

func (s *LocalStore) Del(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, key := range keys {
		if _, ok := s.get(key); ok {
			s.items.Remove(key)
			n++
		}
	}
	return n
}

// HGetAll returns a copy of the hash at key (empty when absent).
func (s *LocalStore) HGetAll(key string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.get(key)
	if !ok || item.hash == nil {
		return map[string]string{}
	}
	return maps.Clone(item.hash)
}

// HSetIf replaces the hash at key with fields while the counter at genKey
// still reads gen ("" when absent). A positive ttl sets its expiry.
func (s *LocalStore) HSetIf(genKey, gen, key string, fields map[string]string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.get(genKey)
	if ok && current.hash != nil {
		return false
	}
	if current.value != gen {
		return false
	}
	s.put(key, localItem{hash: maps.Clone(fields), expiresAt: s.expiry(ttl)})
	return true
}

// HIncrByIfExists increments field only when the hash at key exists. A miss
// bumps the counter at missKey instead.
func (s *LocalStore) HIncrByIfExists(key, field string, delta int64, missKey string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.get(key)
	if !ok || item.hash == nil {
		s.incrCounter(missKey)
		return 0, false
	}
	return s.incr(key, item, field, delta), true
}

// incr must be called with mu held.
func (s *LocalStore) incr(key string, item localItem, field string, delta int64) int64 {
	current, _ := strconv.ParseInt(item.hash[field], 10, 64)
	current += delta
	item.hash = maps.Clone(item.hash)
	item.hash[field] = strconv.FormatInt(current, 10)
	s.put(key, item)
	return current
}

// Len reports the number of live entries.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, item := range s.items.GetAll() {
		if item.expiresAt.IsZero() || s.now().Before(item.expiresAt) {
			n++
		} else {
			s.items.Remove(key)
		}
	}
	return n
}
