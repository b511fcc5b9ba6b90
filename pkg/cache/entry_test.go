package cache

import (
	"testing"
	"time"
)

func TestNewEntry_DefaultTTL(t *testing.T) {
	now := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	entry := NewEntry("payload", now)

	if !entry.CachedAt.Equal(now) {
		t.Errorf("CachedAt = %v, want %v", entry.CachedAt, now)
	}
	if want := now.Add(24 * time.Hour); !entry.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, want)
	}
}

func TestNewEntryWithTTL(t *testing.T) {
	now := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ttl  time.Duration
		want time.Time
	}{
		{name: "one hour", ttl: time.Hour, want: now.Add(time.Hour)},
		{name: "one week", ttl: CodesTTL, want: now.Add(7 * 24 * time.Hour)},
		{name: "zero falls back to default", ttl: 0, want: now.Add(DefaultTTL)},
		{name: "negative falls back to default", ttl: -time.Minute, want: now.Add(DefaultTTL)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntryWithTTL(1.5, now, tt.ttl)
			if !entry.ExpiresAt.Equal(tt.want) {
				t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, tt.want)
			}
		})
	}
}

func TestNewEntryWithSourceExpiration(t *testing.T) {
	const base int64 = 1747180802
	now := time.Unix(base, 0)

	tests := []struct {
		name       string
		nextUpdate int64
		want       time.Time
	}{
		{
			name:       "source declares next update",
			nextUpdate: base + 3600,
			want:       time.Unix(base+3600, 0),
		},
		{
			name:       "source declares nothing",
			nextUpdate: 0,
			want:       now.Add(DefaultTTL),
		},
		{
			name:       "negative timestamp",
			nextUpdate: -5,
			want:       now.Add(DefaultTTL),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntryWithSourceExpiration("rates", tt.nextUpdate, now)
			if !entry.ExpiresAt.Equal(tt.want) {
				t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, tt.want)
			}
			if !entry.CachedAt.Equal(now) {
				t.Errorf("CachedAt = %v, want %v", entry.CachedAt, now)
			}
		})
	}
}

func TestEntry_IsExpired(t *testing.T) {
	now := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	entry := NewEntryWithTTL("x", now, time.Hour)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "fresh", at: now.Add(30 * time.Minute), want: false},
		{name: "exact expiry instant", at: now.Add(time.Hour), want: false},
		{name: "just expired", at: now.Add(time.Hour + time.Nanosecond), want: true},
		{name: "long expired", at: now.Add(90 * time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsExpired(tt.at); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	now := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	entry := NewEntryWithTTL("x", now, time.Hour)

	if got := entry.TTL(now.Add(15 * time.Minute)); got != 45*time.Minute {
		t.Errorf("TTL() = %v, want 45m", got)
	}
	if got := entry.TTL(now.Add(2 * time.Hour)); got != 0 {
		t.Errorf("TTL() after expiry = %v, want 0", got)
	}
}
