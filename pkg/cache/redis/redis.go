// Package redis implements a cache.Backend shared through a Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
)

const backendName = "redis"

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// Config holds Redis backend settings.
type Config struct {
	// Prefix is prepended to every cache key (default: "exchangerate:")
	Prefix string

	// ExpiredRetention keeps records in Redis this long past their ExpiresAt,
	// so reads report cache.ErrExpired instead of cache.ErrNotFound (default: 1h)
	ExpiredRetention time.Duration
}

// DefaultConfig returns default Redis backend settings.
func DefaultConfig() Config {
	return Config{
		Prefix:           "exchangerate:",
		ExpiredRetention: time.Hour,
	}
}

// Backend stores each record as a JSON envelope under Prefix+key.
type Backend struct {
	rdb    *goredis.Client
	cfg    Config
	now    func() time.Time
	closed atomic.Bool
}

// New creates a Redis backend. The backend takes ownership of rdb and closes it on Close.
func New(rdb *goredis.Client, cfg Config, opts ...cache.Option) (*Backend, error) {
	if rdb == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if cfg.ExpiredRetention < 0 {
		return nil, fmt.Errorf("expired retention must be >= 0, got %s", cfg.ExpiredRetention)
	}

	o := cache.ApplyOptions(opts...)
	return &Backend{rdb: rdb, cfg: cfg, now: o.Now}, nil
}

// Ping checks connectivity to the Redis server.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		return b.fail("ping", err)
	}
	return nil
}

// Name implements cache.Backend.
func (b *Backend) Name() string {
	return backendName
}

// Get implements cache.Backend.
func (b *Backend) Get(ctx context.Context, key string) (cache.Record, error) {
	if b.closed.Load() {
		return cache.Record{}, b.fail("get", cache.ErrClosed)
	}

	data, err := b.rdb.Get(ctx, b.cfg.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return cache.Record{}, cache.ErrNotFound
		}
		return cache.Record{}, b.fail("get", err)
	}

	var rec cache.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return cache.Record{}, &cache.SerializationError{Op: "decode", Key: key, Err: err}
	}

	if rec.IsExpired(b.now()) {
		return cache.Record{}, cache.ErrExpired
	}
	return rec, nil
}

// Set implements cache.Backend.
func (b *Backend) Set(ctx context.Context, key string, rec cache.Record) error {
	if b.closed.Load() {
		return b.fail("set", cache.ErrClosed)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &cache.SerializationError{Op: "encode", Key: key, Err: err}
	}

	if err := b.rdb.Set(ctx, b.cfg.Prefix+key, data, b.expiration(rec)).Err(); err != nil {
		return b.fail("set", err)
	}
	return nil
}

// expiration is the Redis TTL for rec: remaining lifetime plus the retention window.
func (b *Backend) expiration(rec cache.Record) time.Duration {
	remaining := rec.ExpiresAt.Sub(b.now())
	if remaining < 0 {
		remaining = 0
	}
	ttl := remaining + b.cfg.ExpiredRetention
	if ttl < time.Second {
		// 0 would mean "no expiry" to Redis
		ttl = time.Second
	}
	return ttl
}

// Invalidate implements cache.Backend.
func (b *Backend) Invalidate(ctx context.Context, key string) error {
	if b.closed.Load() {
		return b.fail("invalidate", cache.ErrClosed)
	}

	if err := b.rdb.Del(ctx, b.cfg.Prefix+key).Err(); err != nil {
		return b.fail("invalidate", err)
	}
	return nil
}

// Clear implements cache.Backend. Only keys under the configured prefix are removed.
func (b *Backend) Clear(ctx context.Context) error {
	if b.closed.Load() {
		return b.fail("clear", cache.ErrClosed)
	}

	return b.scan(ctx, "clear", func(keys []string) error {
		return b.rdb.Del(ctx, keys...).Err()
	})
}

// Stats implements cache.StatsReporter.
func (b *Backend) Stats(ctx context.Context) (cache.Stats, error) {
	if b.closed.Load() {
		return cache.Stats{}, b.fail("stats", cache.ErrClosed)
	}

	now := b.now()
	s := cache.Stats{Backend: backendName}
	err := b.scan(ctx, "stats", func(keys []string) error {
		return b.eachRecord(ctx, keys, func(_ string, rec cache.Record) {
			s.Entries++
			if rec.Kind == cache.KindTyped {
				s.Typed++
			} else {
				s.Raw++
			}
			if rec.IsExpired(now) {
				s.Expired++
			}
		})
	})
	if err != nil {
		return cache.Stats{}, err
	}
	return s, nil
}

// PurgeExpired implements cache.Purger.
func (b *Backend) PurgeExpired(ctx context.Context) (int64, error) {
	if b.closed.Load() {
		return 0, b.fail("purge", cache.ErrClosed)
	}

	now := b.now()
	var purged int64
	err := b.scan(ctx, "purge", func(keys []string) error {
		var stale []string
		if err := b.eachRecord(ctx, keys, func(k string, rec cache.Record) {
			if rec.IsExpired(now) {
				stale = append(stale, k)
			}
		}); err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		n, err := b.rdb.Del(ctx, stale...).Result()
		purged += n
		return err
	})
	return purged, err
}

// Close closes the underlying Redis client.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if err := b.rdb.Close(); err != nil {
		return b.fail("close", err)
	}
	return nil
}

// scan walks every key under the prefix in batches.
func (b *Backend) scan(ctx context.Context, op string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, b.cfg.Prefix+"*", scanBatch).Result()
		if err != nil {
			return b.fail(op, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return b.fail(op, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// eachRecord loads and decodes keys; keys that vanished or hold foreign data are skipped.
func (b *Backend) eachRecord(ctx context.Context, keys []string, fn func(key string, rec cache.Record)) error {
	values, err := b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rec cache.Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue
		}
		fn(keys[i], rec)
	}
	return nil
}

func (b *Backend) fail(op string, err error) error {
	var berr *cache.BackendError
	if errors.As(err, &berr) {
		return err
	}
	return &cache.BackendError{Backend: backendName, Op: op, Err: err}
}
