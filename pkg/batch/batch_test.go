package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

type fakeFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), fail: make(map[string]error)}
}

func (f *fakeFetcher) LatestRates(ctx context.Context, base string) (*rates.LatestResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[base]++
	err := f.fail[base]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &rates.LatestResponse{BaseCode: base, ConversionRates: map[string]float64{base: 1}}, nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		t.Errorf("MaxConcurrency = %d, want > 0", cfg.MaxConcurrency)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, want > 0", cfg.Timeout)
	}
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(newFakeFetcher(), Config{})
	if bf.config != DefaultConfig() {
		t.Errorf("config = %+v, want defaults %+v", bf.config, DefaultConfig())
	}
}

func TestFetchLatest(t *testing.T) {
	f := newFakeFetcher()
	bf := NewBatchFetcher(f, DefaultConfig())

	results, err := bf.FetchLatest(context.Background(), []string{"USD", "eur", "GBP"})
	if err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for _, base := range []string{"USD", "EUR", "GBP"} {
		if results[base] == nil || results[base].BaseCode != base {
			t.Errorf("results[%s] = %+v", base, results[base])
		}
	}
}

func TestFetchLatest_Dedupes(t *testing.T) {
	f := newFakeFetcher()
	bf := NewBatchFetcher(f, DefaultConfig())

	if _, err := bf.FetchLatest(context.Background(), []string{"USD", "usd", " USD ", "EUR"}); err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if f.calls["USD"] != 1 || f.calls["EUR"] != 1 {
		t.Errorf("calls = %v, want one per base", f.calls)
	}
}

func TestFetchLatest_RespectsConcurrency(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 20 * time.Millisecond
	bf := NewBatchFetcher(f, Config{MaxConcurrency: 2, Timeout: time.Second})

	bases := []string{"USD", "EUR", "GBP", "JPY", "CHF", "AUD"}
	if _, err := bf.FetchLatest(context.Background(), bases); err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if got := f.maxSeen.Load(); got > 2 {
		t.Errorf("max in-flight = %d, want <= 2", got)
	}
}

func TestFetchLatest_PartialResultsOnError(t *testing.T) {
	f := newFakeFetcher()
	boom := errors.New("quota reached")
	f.fail["GBP"] = boom
	bf := NewBatchFetcher(f, Config{MaxConcurrency: 1, Timeout: time.Second})

	results, err := bf.FetchLatest(context.Background(), []string{"USD", "GBP", "EUR"})
	if !errors.Is(err, boom) {
		t.Fatalf("FetchLatest() error = %v, want %v", err, boom)
	}
	if results["USD"] == nil {
		t.Error("results fetched before the failure were dropped")
	}
	if _, ok := results["GBP"]; ok {
		t.Error("failed base present in results")
	}
}

func TestFetchLatest_Empty(t *testing.T) {
	bf := NewBatchFetcher(newFakeFetcher(), DefaultConfig())
	results, err := bf.FetchLatest(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("FetchLatest(nil) = %v, %v; want empty, nil", results, err)
	}
}
