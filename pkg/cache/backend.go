package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Kind tags how a record's payload should be read back.
type Kind string

const (
	// KindTyped marks a payload written by SetTyped (canonical JSON of a Go value).
	KindTyped Kind = "typed"

	// KindRaw marks an opaque JSON string written by SetRaw.
	KindRaw Kind = "raw"
)

// Record is the unit every backend stores: a serialized payload, its kind
// and its validity window. Records are values; backends never hand out
// references into their storage.
type Record struct {
	Kind      Kind      `json:"kind"`
	Payload   string    `json:"payload"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the record is stale at now.
func (r Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Backend is a storage medium for cache records. Implementations must be safe
// for concurrent use.
//
// Get returns ErrNotFound for unknown keys and ErrExpired for records whose
// ExpiresAt has passed; an expired payload is never returned. Storage failures
// are reported as *BackendError.
type Backend interface {
	// Name identifies the backend in logs and metrics (e.g., "memory", "sqlite").
	Name() string

	// Get returns the record stored under key.
	Get(ctx context.Context, key string) (Record, error)

	// Set stores rec under key, replacing any previous record.
	Set(ctx context.Context, key string, rec Record) error

	// Invalidate removes key. Removing an absent key is not an error.
	Invalidate(ctx context.Context, key string) error

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Options holds settings shared by all backend implementations.
type Options struct {
	// Now returns the current time; used for expiry checks
	Now func() time.Time
}

// Option configures a backend.
type Option func(*Options)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{Now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GetTyped reads the typed entry stored under key and decodes it into T.
func GetTyped[T any](ctx context.Context, b Backend, key string) (Entry[T], error) {
	rec, err := b.Get(ctx, key)
	if err != nil {
		observeGet(b.Name(), err)
		return Entry[T]{}, err
	}

	if rec.Kind != KindTyped {
		err := &SerializationError{Op: "decode", Key: key, Err: ErrKindMismatch}
		observeGet(b.Name(), err)
		return Entry[T]{}, err
	}

	var value T
	if err := json.Unmarshal([]byte(rec.Payload), &value); err != nil {
		serr := &SerializationError{Op: "decode", Key: key, Err: err}
		observeGet(b.Name(), serr)
		return Entry[T]{}, serr
	}

	observeGet(b.Name(), nil)
	return Entry[T]{
		Value:     value,
		CachedAt:  rec.CachedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// SetTyped encodes entry.Value as JSON and stores it under key.
func SetTyped[T any](ctx context.Context, b Backend, key string, entry Entry[T]) error {
	data, err := json.Marshal(entry.Value)
	if err != nil {
		serr := &SerializationError{Op: "encode", Key: key, Err: err}
		observeSet(b.Name(), serr)
		return serr
	}

	err = b.Set(ctx, key, Record{
		Kind:      KindTyped,
		Payload:   string(data),
		CachedAt:  entry.CachedAt,
		ExpiresAt: entry.ExpiresAt,
	})
	observeSet(b.Name(), err)
	return err
}

// GetRaw reads the payload stored under key as an opaque JSON string.
// Typed records are returned in their canonical JSON form.
func GetRaw(ctx context.Context, b Backend, key string) (Entry[string], error) {
	rec, err := b.Get(ctx, key)
	observeGet(b.Name(), err)
	if err != nil {
		return Entry[string]{}, err
	}
	return Entry[string]{
		Value:     rec.Payload,
		CachedAt:  rec.CachedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// SetRaw stores an opaque JSON payload under key with the given validity window.
func SetRaw(ctx context.Context, b Backend, key, payload string, cachedAt, expiresAt time.Time) error {
	err := b.Set(ctx, key, Record{
		Kind:      KindRaw,
		Payload:   payload,
		CachedAt:  cachedAt,
		ExpiresAt: expiresAt,
	})
	observeSet(b.Name(), err)
	return err
}

// Stats summarizes a backend's contents.
type Stats struct {
	Backend string `json:"backend"`
	Entries int64  `json:"entries"`
	Typed   int64  `json:"typed"`
	Raw     int64  `json:"raw"`
	Expired int64  `json:"expired"`
}

// StatsReporter is implemented by backends that can count their records.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

// Purger is implemented by backends that keep expired records until told
// otherwise. PurgeExpired returns the number of records removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
