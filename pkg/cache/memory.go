package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is a process-local Backend. Expiry is checked on read; expired
// records stay in memory until overwritten, invalidated or cleared.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts ...Option) *MemoryBackend {
	o := ApplyOptions(opts...)
	return &MemoryBackend{
		records: make(map[string]Record),
		now:     o.Now,
	}
}

// Name implements Backend.
func (m *MemoryBackend) Name() string {
	return "memory"
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Record{}, &BackendError{Backend: m.Name(), Op: "get", Err: ErrClosed}
	}

	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.IsExpired(m.now()) {
		return Record{}, ErrExpired
	}
	return rec, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(ctx context.Context, key string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &BackendError{Backend: m.Name(), Op: "set", Err: ErrClosed}
	}

	m.records[key] = rec
	return nil
}

// Invalidate implements Backend.
func (m *MemoryBackend) Invalidate(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &BackendError{Backend: m.Name(), Op: "invalidate", Err: ErrClosed}
	}

	delete(m.records, key)
	return nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &BackendError{Backend: m.Name(), Op: "clear", Err: ErrClosed}
	}

	m.records = make(map[string]Record)
	return nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close drops all records; later calls fail with ErrClosed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}

// Stats implements StatsReporter.
func (m *MemoryBackend) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Stats{}, &BackendError{Backend: m.Name(), Op: "stats", Err: ErrClosed}
	}

	now := m.now()
	s := Stats{Backend: m.Name()}
	for _, rec := range m.records {
		s.Entries++
		if rec.Kind == KindTyped {
			s.Typed++
		} else {
			s.Raw++
		}
		if rec.IsExpired(now) {
			s.Expired++
		}
	}
	return s, nil
}

// PurgeExpired implements Purger.
func (m *MemoryBackend) PurgeExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &BackendError{Backend: m.Name(), Op: "purge", Err: ErrClosed}
	}

	now := m.now()
	var n int64
	for key, rec := range m.records {
		if rec.IsExpired(now) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}
