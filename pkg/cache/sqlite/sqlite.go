// Package sqlite implements a durable cache.Backend stored in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
)

const backendName = "sqlite"

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Bounds of timeLayout's four digit year. Timestamps outside are clamped on write.
var (
	minStoredTime = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)
	maxStoredTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

const createTable = `
CREATE TABLE IF NOT EXISTS exchange_rate_cache (
	key TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	cached_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	response_type TEXT NOT NULL
);
`

const (
	selectRecord = `SELECT response, cached_at, expires_at, response_type FROM exchange_rate_cache WHERE key = ?`
	upsertRecord = `INSERT OR REPLACE INTO exchange_rate_cache (key, response, cached_at, expires_at, response_type) VALUES (?, ?, ?, ?, ?)`
	deleteRecord = `DELETE FROM exchange_rate_cache WHERE key = ?`
	deleteAll    = `DELETE FROM exchange_rate_cache`
	deleteStale  = `DELETE FROM exchange_rate_cache WHERE expires_at < ?`
	countByType  = `SELECT response_type, COUNT(*), COALESCE(SUM(CASE WHEN expires_at < ? THEN 1 ELSE 0 END), 0) FROM exchange_rate_cache GROUP BY response_type`
)

// Backend stores cache records in the exchange_rate_cache table.
// Expired rows are reported as cache.ErrExpired and only removed by
// PurgeExpired, Invalidate or Clear.
type Backend struct {
	mu     sync.Mutex
	db     *sql.DB
	now    func() time.Time
	closed bool
}

// New opens (or creates) the database at path and ensures the schema exists.
// Parent directories are created as needed.
func New(path string, opts ...cache.Option) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &cache.BackendError{Backend: backendName, Op: "open", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &cache.BackendError{Backend: backendName, Op: "open", Err: err}
	}

	b, err := NewFromDB(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewFromDB wraps an already opened database handle and runs the migration.
func NewFromDB(db *sql.DB, opts ...cache.Option) (*Backend, error) {
	o := cache.ApplyOptions(opts...)

	// A single connection serializes writers at the driver level too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		return nil, &cache.BackendError{Backend: backendName, Op: "migrate", Err: err}
	}

	return &Backend{db: db, now: o.Now}, nil
}

// Name implements cache.Backend.
func (b *Backend) Name() string {
	return backendName
}

// Get implements cache.Backend.
func (b *Backend) Get(ctx context.Context, key string) (cache.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return cache.Record{}, b.fail("get", cache.ErrClosed)
	}

	var payload, cachedAt, expiresAt, kind string
	err := b.db.QueryRowContext(ctx, selectRecord, key).Scan(&payload, &cachedAt, &expiresAt, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Record{}, cache.ErrNotFound
	}
	if err != nil {
		return cache.Record{}, b.fail("get", err)
	}

	rec := cache.Record{Kind: cache.Kind(kind), Payload: payload}
	if rec.CachedAt, err = parseTime(key, cachedAt); err != nil {
		return cache.Record{}, err
	}
	if rec.ExpiresAt, err = parseTime(key, expiresAt); err != nil {
		return cache.Record{}, err
	}

	if rec.IsExpired(b.now()) {
		return cache.Record{}, cache.ErrExpired
	}
	return rec, nil
}

// Set implements cache.Backend.
func (b *Backend) Set(ctx context.Context, key string, rec cache.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return b.fail("set", cache.ErrClosed)
	}

	_, err := b.db.ExecContext(ctx, upsertRecord,
		key, rec.Payload, formatTime(rec.CachedAt), formatTime(rec.ExpiresAt), string(rec.Kind))
	if err != nil {
		return b.fail("set", err)
	}
	return nil
}

// Invalidate implements cache.Backend.
func (b *Backend) Invalidate(ctx context.Context, key string) error {
	return b.exec(ctx, "invalidate", deleteRecord, key)
}

// Clear implements cache.Backend.
func (b *Backend) Clear(ctx context.Context) error {
	return b.exec(ctx, "clear", deleteAll)
}

// PurgeExpired deletes rows whose expiry has passed and reports how many were removed.
func (b *Backend) PurgeExpired(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, b.fail("purge", cache.ErrClosed)
	}

	res, err := b.db.ExecContext(ctx, deleteStale, formatTime(b.now()))
	if err != nil {
		return 0, b.fail("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, b.fail("purge", err)
	}
	return n, nil
}

// Stats counts rows by response type.
func (b *Backend) Stats(ctx context.Context) (cache.Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return cache.Stats{}, b.fail("stats", cache.ErrClosed)
	}

	rows, err := b.db.QueryContext(ctx, countByType, formatTime(b.now()))
	if err != nil {
		return cache.Stats{}, b.fail("stats", err)
	}
	defer rows.Close()

	s := cache.Stats{Backend: backendName}
	for rows.Next() {
		var kind string
		var count, expired int64
		if err := rows.Scan(&kind, &count, &expired); err != nil {
			return cache.Stats{}, b.fail("stats", err)
		}
		s.Entries += count
		s.Expired += expired
		switch cache.Kind(kind) {
		case cache.KindTyped:
			s.Typed += count
		default:
			s.Raw += count
		}
	}
	if err := rows.Err(); err != nil {
		return cache.Stats{}, b.fail("stats", err)
	}
	return s, nil
}

// Close releases the database handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		return b.fail("close", err)
	}
	return nil
}

func (b *Backend) exec(ctx context.Context, op, query string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return b.fail(op, cache.ErrClosed)
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return b.fail(op, err)
	}
	return nil
}

func (b *Backend) fail(op string, err error) error {
	return &cache.BackendError{Backend: backendName, Op: op, Err: err}
}

func formatTime(t time.Time) string {
	switch {
	case t.Before(minStoredTime):
		t = minStoredTime
	case t.After(maxStoredTime):
		t = maxStoredTime
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(key, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, &cache.SerializationError{Op: "decode", Key: key, Err: fmt.Errorf("timestamp %q: %w", s, err)}
	}
	return t, nil
}
