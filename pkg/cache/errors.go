package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the key was never stored or has been removed
	ErrNotFound = errors.New("cache entry not found")

	// ErrExpired indicates the key is stored but its TTL has elapsed
	ErrExpired = errors.New("cache entry expired")

	// ErrClosed indicates the backend was used after Close
	ErrClosed = errors.New("cache backend closed")

	// ErrKindMismatch indicates a typed read of a raw record
	ErrKindMismatch = errors.New("cache record kind mismatch")
)

// BackendError reports a failure of the storage medium (lock, connection, query).
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// SerializationError reports a payload or timestamp that could not be encoded or decoded.
type SerializationError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// IsMiss reports whether err means "fetch from upstream": the entry is absent or expired.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired)
}
