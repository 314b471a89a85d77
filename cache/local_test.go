// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move a LocalStore through time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLocal(t *testing.T) (*LocalStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Now()}
	s := NewLocalStore(0)
	s.now = clock.Now
	t.Cleanup(s.Close)
	return s, clock
}

func TestLocalSetNX(t *testing.T) {
	s, clock := newTestLocal(t)

	assert.True(t, s.SetNX("k", "a", time.Second))
	assert.False(t, s.SetNX("k", "b", time.Second))

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	clock.Advance(time.Second)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry should expire")
	assert.True(t, s.SetNX("k", "b", time.Second))
}

func TestLocalCompareAndDelete(t *testing.T) {
	s, _ := newTestLocal(t)
	require.True(t, s.SetNX("k", "owner", time.Minute))

	assert.False(t, s.CompareAndDelete("k", "intruder"))
	_, ok := s.Get("k")
	assert.True(t, ok)

	assert.True(t, s.CompareAndDelete("k", "owner"))
	_, ok = s.Get("k")
	assert.False(t, ok)

	assert.False(t, s.CompareAndDelete("k", "owner"))
}

func TestLocalCompareAndExpire(t *testing.T) {
	s, clock := newTestLocal(t)
	require.True(t, s.SetNX("k", "owner", time.Second))

	assert.False(t, s.CompareAndExpire("k", "intruder", time.Minute))
	assert.True(t, s.CompareAndExpire("k", "owner", time.Minute))

	clock.Advance(30 * time.Second)
	_, ok := s.Get("k")
	assert.True(t, ok, "extended lease outlives its first second")

	clock.Advance(30 * time.Second)
	assert.False(t, s.CompareAndExpire("k", "owner", time.Minute), "expired lease cannot be extended")
}

func TestLocalIncr(t *testing.T) {
	s, _ := newTestLocal(t)

	assert.Equal(t, int64(1), s.Incr("g"))
	assert.Equal(t, int64(2), s.Incr("g"))

	v, ok := s.Get("g")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestLocalHSetIf(t *testing.T) {
	s, clock := newTestLocal(t)

	require.True(t, s.HSetIf("g", "", "h", map[string]string{"a": "1", "b": "2"}, time.Minute))
	require.True(t, s.HSetIf("g", "", "h", map[string]string{"a": "3"}, time.Minute))
	assert.Equal(t, map[string]string{"a": "3"}, s.HGetAll("h"), "fields are replaced, not merged")

	s.Incr("g")
	assert.False(t, s.HSetIf("g", "", "h", map[string]string{"a": "4"}, time.Minute))
	assert.True(t, s.HSetIf("g", "1", "h", map[string]string{"a": "5"}, time.Minute))
	assert.Equal(t, "5", s.HGetAll("h")["a"])

	clock.Advance(time.Minute)
	assert.Empty(t, s.HGetAll("h"))
}

func TestLocalHashes(t *testing.T) {
	s, clock := newTestLocal(t)

	_, ok := s.HIncrByIfExists("h", "n1", 1, "g")
	assert.False(t, ok, "missing hash must not be created")
	assert.Empty(t, s.HGetAll("h"))
	gen, _ := s.Get("g")
	assert.Equal(t, "1", gen, "a missed increment bumps the generation")

	require.True(t, s.HSetIf("g", "1", "h", map[string]string{"n1": "5"}, time.Minute))
	n, ok := s.HIncrByIfExists("h", "n1", 2, "g")
	require.True(t, ok)
	assert.Equal(t, int64(7), n)

	n, ok = s.HIncrByIfExists("h", "n2", 1, "g")
	require.True(t, ok)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, map[string]string{"n1": "7", "n2": "1"}, s.HGetAll("h"))
	gen, _ = s.Get("g")
	assert.Equal(t, "1", gen)

	// increments keep the original expiry
	clock.Advance(time.Minute)
	assert.Empty(t, s.HGetAll("h"))
}

func TestLocalHGetAllReturnsCopy(t *testing.T) {
	s, _ := newTestLocal(t)
	fields := map[string]string{"a": "1"}
	require.True(t, s.HSetIf("g", "", "h", fields, 0))
	fields["a"] = "2"

	got := s.HGetAll("h")
	got["a"] = "999"

	assert.Equal(t, "1", s.HGetAll("h")["a"])
}

func TestLocalDelAndLen(t *testing.T) {
	s, clock := newTestLocal(t)
	s.Incr("a")
	require.True(t, s.SetNX("b", "1", time.Second))
	require.True(t, s.HSetIf("g", "", "c", map[string]string{"x": "1"}, 0))

	assert.Equal(t, 3, s.Len())

	clock.Advance(time.Second)
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 2, s.Del("a", "b", "c"))
	assert.Equal(t, 0, s.Len())
}

func TestLocalConcurrentIncrements(t *testing.T) {
	s, _ := newTestLocal(t)
	require.True(t, s.HSetIf("g", "", "h", map[string]string{"n": "0"}, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.HIncrByIfExists("h", "n", 1, "g")
		}()
	}
	wg.Wait()

	assert.Equal(t, "50", s.HGetAll("h")["n"])
}
