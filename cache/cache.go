// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opeoladettp/yodeco-backend-sub000/breaker"
	"github.com/opeoladettp/yodeco-backend-sub000/metrics"
)

// ErrUnavailable is returned when Redis cannot serve an operation and no
// local fallback store is configured.
var ErrUnavailable = errors.New("cache unavailable")

var (
	compareAndDeleteScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`)

	compareAndExpireScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0`)

	incrIfExistsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return {1, redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])}
end
redis.call('INCR', KEYS[2])
return {0, 0}`)

	hsetIfScript = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '') ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[2])
redis.call('HSET', KEYS[2], unpack(ARGV, 3))
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
return 1`)
)

// Generation is a counter value captured before a recompute. It remembers
// which backend served it.
type Generation struct {
	backend string
	value   string
}

// on returns the value to compare against backend's counter. A counter only
// ever reads "" or a number, so a token from the other backend never matches.
func (g Generation) on(backend string) string {
	if g.backend != backend {
		return "-"
	}
	return g.value
}

type Options struct {
	// Client may be nil, in which case every operation uses Local.
	Client  redis.UniversalClient
	Local   *LocalStore
	Breaker *breaker.Breaker
	Metrics *metrics.Metrics
}

// Cache runs every operation against Redis through the breaker and serves
// it from the local store when Redis fails or the breaker is open.
type Cache struct {
	rdb     redis.UniversalClient
	local   *LocalStore
	breaker *breaker.Breaker
	metrics *metrics.Metrics
	pending pending
}

func New(opts Options) *Cache {
	return &Cache{
		rdb:     opts.Client,
		local:   opts.Local,
		breaker: opts.Breaker,
		metrics: opts.Metrics,
	}
}

// Local returns the fallback store (may be nil).
func (c *Cache) Local() *LocalStore {
	return c.local
}

// IsNotFound reports errors that mean "no such key" rather than a failure.
// Pass it as the breaker's IsExcluded.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// do runs remote against Redis and local against the fallback store when
// Redis cannot answer. The returned backend names which one served. Writes
// queued during an outage are replayed before remote runs.
func do[T any](ctx context.Context, c *Cache, op string, remote func(ctx context.Context) (T, error), local func(*LocalStore) T) (T, string, error) {
	var zero T

	if c.rdb == nil {
		if c.local == nil {
			return zero, "", fmt.Errorf("%s: %w", op, ErrUnavailable)
		}
		return local(c.local), metrics.BackendLocal, nil
	}

	backend := metrics.BackendRedis
	v, err := breaker.Run(ctx, c.breaker, func(ctx context.Context) (T, error) {
		if err := c.replay(ctx); err != nil {
			return zero, err
		}
		return remote(ctx)
	}, func(ctx context.Context, cause error) (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if c.local == nil {
			return zero, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, cause)
		}
		slog.Warn("redis unavailable, using local store", "op", op, "backend", metrics.BackendLocal, "error", cause)
		if c.metrics != nil {
			c.metrics.CacheFallbacks.WithLabelValues(op).Inc()
		}
		backend = metrics.BackendLocal
		return local(c.local), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return zero, "", err
		}
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		return zero, "", err
	}
	return v, backend, nil
}

// SetNX stores value with a TTL only if key is absent (SET NX PX).
func (c *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, string, error) {
	return do(ctx, c, "setnx",
		func(ctx context.Context) (bool, error) {
			return c.rdb.SetNX(ctx, key, value, ttl).Result()
		},
		func(l *LocalStore) bool {
			return l.SetNX(key, value, ttl)
		})
}

// CompareAndDelete deletes key only if it holds value.
func (c *Cache) CompareAndDelete(ctx context.Context, key, value string) (bool, string, error) {
	return do(ctx, c, "compare_and_delete",
		func(ctx context.Context) (bool, error) {
			n, err := compareAndDeleteScript.Run(ctx, c.rdb, []string{key}, value).Int64()
			return n == 1, err
		},
		func(l *LocalStore) bool {
			return l.CompareAndDelete(key, value)
		})
}

// CompareAndExpire resets the TTL of key only if it holds value.
func (c *Cache) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, string, error) {
	return do(ctx, c, "compare_and_expire",
		func(ctx context.Context) (bool, error) {
			n, err := compareAndExpireScript.Run(ctx, c.rdb, []string{key}, value, ttl.Milliseconds()).Int64()
			return n == 1, err
		},
		func(l *LocalStore) bool {
			return l.CompareAndExpire(key, value, ttl)
		})
}

// Del removes keys. While Redis is unreachable the local store is cleared
// and the keys are queued for deletion once Redis answers again.
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	_, err := write(ctx, c, "del", keys, nil,
		func(ctx context.Context) (int64, error) {
			return c.rdb.Del(ctx, keys...).Result()
		},
		func(l *LocalStore) int64 {
			return int64(l.Del(keys...))
		})
	return err
}

// Incr bumps the counter at key. A bump served locally is repeated against
// Redis once it answers again.
func (c *Cache) Incr(ctx context.Context, key string) error {
	_, err := write(ctx, c, "incr", nil, []string{key},
		func(ctx context.Context) (int64, error) {
			return c.rdb.Incr(ctx, key).Result()
		},
		func(l *LocalStore) int64 {
			return l.Incr(key)
		})
	return err
}

// Generation reads the counter at key as an opaque token for HSetIf.
func (c *Cache) Generation(ctx context.Context, key string) (Generation, error) {
	val, backend, err := do(ctx, c, "get",
		func(ctx context.Context) (string, error) {
			val, err := c.rdb.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return "", nil
			}
			return val, err
		},
		func(l *LocalStore) string {
			val, _ := l.Get(key)
			return val
		})
	if err != nil {
		return Generation{}, err
	}
	return Generation{backend: backend, value: val}, nil
}

// HGetAll returns every field of the hash at key (empty when absent).
func (c *Cache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, _, err := do(ctx, c, "hgetall",
		func(ctx context.Context) (map[string]string, error) {
			return c.rdb.HGetAll(ctx, key).Result()
		},
		func(l *LocalStore) map[string]string {
			return l.HGetAll(key)
		})
	return m, err
}

// HSetIf replaces the hash at key with fields only while the counter at
// genKey still matches gen. A token read from one backend never matches the
// other, so nothing read during an outage is written back after it.
func (c *Cache) HSetIf(ctx context.Context, genKey string, gen Generation, key string, fields map[string]string, ttl time.Duration) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	return write(ctx, c, "hset_if", []string{key}, nil,
		func(ctx context.Context) (bool, error) {
			args := make([]any, 0, 2+2*len(fields))
			args = append(args, gen.on(metrics.BackendRedis), ttl.Milliseconds())
			for field, v := range fields {
				args = append(args, field, v)
			}
			n, err := hsetIfScript.Run(ctx, c.rdb, []string{genKey, key}, args...).Int64()
			return n == 1, err
		},
		func(l *LocalStore) bool {
			return l.HSetIf(genKey, gen.on(metrics.BackendLocal), key, fields, ttl)
		})
}

// HIncrByIfExists increments field only when the hash at key exists, so an
// evicted tally is never recreated with a partial count. A miss bumps the
// counter at missKey instead, failing any HSetIf that read it earlier.
func (c *Cache) HIncrByIfExists(ctx context.Context, key, field string, delta int64, missKey string) (int64, bool, error) {
	type result struct {
		val int64
		ok  bool
	}
	r, err := write(ctx, c, "hincrby_if_exists", []string{key}, []string{missKey},
		func(ctx context.Context) (result, error) {
			vals, err := incrIfExistsScript.Run(ctx, c.rdb, []string{key, missKey}, field, delta).Int64Slice()
			if err != nil {
				return result{}, err
			}
			if len(vals) != 2 {
				return result{}, fmt.Errorf("unexpected script reply %v", vals)
			}
			return result{val: vals[1], ok: vals[0] == 1}, nil
		},
		func(l *LocalStore) result {
			val, ok := l.HIncrByIfExists(key, field, delta, missKey)
			return result{val: val, ok: ok}
		})
	return r.val, r.ok, err
}

// write is do for mutations. A mutation served by the local store leaves
// Redis holding the old value, so keys are queued for deletion and bump for
// an increment on the next command that reaches Redis.
func write[T any](ctx context.Context, c *Cache, op string, keys, bump []string, remote func(ctx context.Context) (T, error), local func(*LocalStore) T) (T, error) {
	v, backend, err := do(ctx, c, op, remote, local)
	if err == nil && c.rdb != nil && backend == metrics.BackendLocal {
		c.pending.add(false, keys...)
		c.pending.add(true, bump...)
	}
	return v, err
}

// Ping reports whether Redis answers. It never falls back.
func (c *Cache) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
