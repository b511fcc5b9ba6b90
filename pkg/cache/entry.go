package cache

import (
	"time"
)

const (
	// DefaultTTL is the lifetime of an entry when the source declares none.
	DefaultTTL = 24 * time.Hour

	// CodesTTL is the lifetime used for the supported-codes list, which changes rarely.
	CodesTTL = 7 * 24 * time.Hour
)

// Entry is a cached value with the time it was stored and the time it stops being valid.
// ExpiresAt is fixed at construction; updating a key replaces the whole entry.
type Entry[T any] struct {
	// Value is the cached payload
	Value T `json:"value"`

	// CachedAt is when the value was fetched and stored
	CachedAt time.Time `json:"cached_at"`

	// ExpiresAt is when the entry becomes stale
	ExpiresAt time.Time `json:"expires_at"`
}

// NewEntry creates an entry valid for DefaultTTL from now.
func NewEntry[T any](value T, now time.Time) Entry[T] {
	return NewEntryWithTTL(value, now, DefaultTTL)
}

// NewEntryWithTTL creates an entry valid for ttl from now.
// A non-positive ttl falls back to DefaultTTL.
func NewEntryWithTTL[T any](value T, now time.Time, ttl time.Duration) Entry[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Entry[T]{
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// NewEntryWithSourceExpiration creates an entry that expires when the source says
// its data will next be refreshed. nextUpdateUnix is a Unix timestamp in seconds;
// zero or negative means the source declared nothing and DefaultTTL applies.
func NewEntryWithSourceExpiration[T any](value T, nextUpdateUnix int64, now time.Time) Entry[T] {
	if nextUpdateUnix <= 0 {
		return NewEntry(value, now)
	}
	return Entry[T]{
		Value:     value,
		CachedAt:  now,
		ExpiresAt: time.Unix(nextUpdateUnix, 0).UTC(),
	}
}

// IsExpired reports whether the entry is stale at now.
// The entry is still valid at the exact expiry instant.
func (e Entry[T]) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTL returns the time left until expiration at now.
// Returns 0 if already expired.
func (e Entry[T]) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
