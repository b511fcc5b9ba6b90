// Package cachetest provides a behavioural test suite that every cache.Backend
// implementation runs against.
package cachetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/exchangerate-client/internal/testutil"
	"github.com/Sternrassler/exchangerate-client/pkg/cache"
	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

// Factory creates a fresh, empty backend whose expiry checks use now.
type Factory func(t *testing.T, now func() time.Time) cache.Backend

// Start is the fixed instant every suite clock begins at.
var Start = time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)

// Run executes the suite against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	setup := func(t *testing.T) (cache.Backend, *testutil.Clock) {
		t.Helper()
		clock := testutil.NewClock(Start)
		b := newBackend(t, clock.Now)
		return b, clock
	}

	t.Run("unknown key is not found", func(t *testing.T) {
		b, _ := setup(t)
		ctx := context.Background()

		if _, err := cache.GetTyped[rates.LatestResponse](ctx, b, "latest:USD"); !errors.Is(err, cache.ErrNotFound) {
			t.Errorf("GetTyped() error = %v, want ErrNotFound", err)
		}
		if _, err := cache.GetRaw(ctx, b, "pair:USD:EUR"); !errors.Is(err, cache.ErrNotFound) {
			t.Errorf("GetRaw() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("raw round trip and expiry", func(t *testing.T) {
		b, clock := setup(t)
		ctx := context.Background()

		payload := `{"conversion_rate":0.85}`
		if err := cache.SetRaw(ctx, b, "pair:USD:EUR", payload, Start, Start.Add(time.Hour)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}

		clock.Advance(30 * time.Minute)
		got, err := cache.GetRaw(ctx, b, "pair:USD:EUR")
		if err != nil {
			t.Fatalf("GetRaw() at +30m error = %v", err)
		}
		if got.Value != payload {
			t.Errorf("GetRaw() payload = %q, want %q", got.Value, payload)
		}
		if !got.CachedAt.Equal(Start) {
			t.Errorf("GetRaw() cachedAt = %v, want %v", got.CachedAt, Start)
		}
		if !got.ExpiresAt.Equal(Start.Add(time.Hour)) {
			t.Errorf("GetRaw() expiresAt = %v, want %v", got.ExpiresAt, Start.Add(time.Hour))
		}

		clock.Set(Start.Add(90 * time.Minute))
		if _, err := cache.GetRaw(ctx, b, "pair:USD:EUR"); !errors.Is(err, cache.ErrExpired) {
			t.Errorf("GetRaw() at +90m error = %v, want ErrExpired", err)
		}
	})

	t.Run("valid at exact expiry instant", func(t *testing.T) {
		b, clock := setup(t)
		ctx := context.Background()

		if err := cache.SetRaw(ctx, b, "codes:", `{"supported_codes":[]}`, Start, Start.Add(time.Hour)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}

		clock.Set(Start.Add(time.Hour))
		if _, err := cache.GetRaw(ctx, b, "codes:"); err != nil {
			t.Errorf("GetRaw() at expiry instant error = %v, want nil", err)
		}
	})

	t.Run("typed round trip keeps float precision", func(t *testing.T) {
		b, clock := setup(t)
		ctx := context.Background()

		resp := rates.LatestResponse{
			Result:             "success",
			BaseCode:           "USD",
			TimeNextUpdateUnix: Start.Add(time.Hour).Unix(),
			ConversionRates: map[string]float64{
				"USD": 1,
				"EUR": 0.8961,
				"JPY": 147.678,
				"BTC": 0.000010413851512345,
			},
		}
		entry := cache.NewEntryWithSourceExpiration(resp, resp.TimeNextUpdateUnix, Start)
		if err := cache.SetTyped(ctx, b, "latest:USD", entry); err != nil {
			t.Fatalf("SetTyped() error = %v", err)
		}

		clock.Advance(59 * time.Minute)
		got, err := cache.GetTyped[rates.LatestResponse](ctx, b, "latest:USD")
		if err != nil {
			t.Fatalf("GetTyped() error = %v", err)
		}
		if got.Value.BaseCode != "USD" {
			t.Errorf("BaseCode = %q, want USD", got.Value.BaseCode)
		}
		for code, want := range resp.ConversionRates {
			if rate := got.Value.ConversionRates[code]; rate != want {
				t.Errorf("rate %s = %v, want %v", code, rate, want)
			}
		}
		if !got.ExpiresAt.Equal(entry.ExpiresAt) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, entry.ExpiresAt)
		}

		clock.Advance(2 * time.Minute)
		if _, err := cache.GetTyped[rates.LatestResponse](ctx, b, "latest:USD"); !errors.Is(err, cache.ErrExpired) {
			t.Errorf("GetTyped() after expiry error = %v, want ErrExpired", err)
		}
	})

	t.Run("typed read of raw record is a serialization error", func(t *testing.T) {
		b, _ := setup(t)
		ctx := context.Background()

		if err := cache.SetRaw(ctx, b, "pair:USD:EUR", `{"conversion_rate":0.85}`, Start, Start.Add(time.Hour)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}

		_, err := cache.GetTyped[rates.LatestResponse](ctx, b, "pair:USD:EUR")
		var serr *cache.SerializationError
		if !errors.As(err, &serr) || !errors.Is(err, cache.ErrKindMismatch) {
			t.Errorf("GetTyped() error = %v, want SerializationError wrapping ErrKindMismatch", err)
		}
	})

	t.Run("overwrite replaces whole entry", func(t *testing.T) {
		b, _ := setup(t)
		ctx := context.Background()

		if err := cache.SetRaw(ctx, b, "pair:USD:EUR", `{"conversion_rate":0.85}`, Start, Start.Add(time.Hour)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}
		later := Start.Add(10 * time.Minute)
		if err := cache.SetRaw(ctx, b, "pair:USD:EUR", `{"conversion_rate":0.9}`, later, later.Add(2*time.Hour)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}

		got, err := cache.GetRaw(ctx, b, "pair:USD:EUR")
		if err != nil {
			t.Fatalf("GetRaw() error = %v", err)
		}
		if got.Value != `{"conversion_rate":0.9}` || !got.CachedAt.Equal(later) || !got.ExpiresAt.Equal(later.Add(2*time.Hour)) {
			t.Errorf("GetRaw() = %+v, want the second write", got)
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		b, clock := setup(t)
		ctx := context.Background()

		if err := cache.SetRaw(ctx, b, "pair:USD:EUR", `{}`, Start, Start.Add(time.Hour)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}
		if err := cache.SetRaw(ctx, b, "pair:EUR:USD", `{}`, Start, Start.Add(time.Minute)); err != nil {
			t.Fatalf("SetRaw() error = %v", err)
		}
		clock.Advance(5 * time.Minute)

		for _, key := range []string{"pair:USD:EUR", "pair:EUR:USD"} {
			if err := b.Invalidate(ctx, key); err != nil {
				t.Fatalf("Invalidate(%s) error = %v", key, err)
			}
			if _, err := cache.GetRaw(ctx, b, key); !errors.Is(err, cache.ErrNotFound) {
				t.Errorf("GetRaw(%s) after Invalidate error = %v, want ErrNotFound", key, err)
			}
		}

		if err := b.Invalidate(ctx, "never:stored"); err != nil {
			t.Errorf("Invalidate() of absent key error = %v, want nil", err)
		}
	})

	t.Run("clear", func(t *testing.T) {
		b, _ := setup(t)
		ctx := context.Background()

		keys := []string{"latest:USD", "pair:USD:EUR", "codes:"}
		for _, key := range keys {
			if err := cache.SetRaw(ctx, b, key, `{}`, Start, Start.Add(time.Hour)); err != nil {
				t.Fatalf("SetRaw(%s) error = %v", key, err)
			}
		}

		if err := b.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}

		for _, key := range keys {
			if _, err := cache.GetRaw(ctx, b, key); !errors.Is(err, cache.ErrNotFound) {
				t.Errorf("GetRaw(%s) after Clear error = %v, want ErrNotFound", key, err)
			}
		}
	})

	t.Run("concurrent writers to distinct keys", func(t *testing.T) {
		b, _ := setup(t)
		ctx := context.Background()

		const writers = 8
		const perWriter = 25

		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					key := fmt.Sprintf("pair:W%d:%d", w, i)
					payload := fmt.Sprintf(`{"writer":%d,"n":%d}`, w, i)
					if err := cache.SetRaw(ctx, b, key, payload, Start, Start.Add(time.Hour)); err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent SetRaw() error = %v", err)
		}

		for w := 0; w < writers; w++ {
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("pair:W%d:%d", w, i)
				got, err := cache.GetRaw(ctx, b, key)
				if err != nil {
					t.Errorf("GetRaw(%s) error = %v", key, err)
					continue
				}
				if want := fmt.Sprintf(`{"writer":%d,"n":%d}`, w, i); got.Value != want {
					t.Errorf("GetRaw(%s) = %q, want %q", key, got.Value, want)
				}
			}
		}
	})
}
