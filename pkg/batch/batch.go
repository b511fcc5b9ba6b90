// Package batch fetches rate tables for several base currencies in parallel.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per base currency fetch
	Timeout time.Duration
}

// DefaultConfig returns the default batch configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Fetcher is implemented by *client.Client.
type Fetcher interface {
	LatestRates(ctx context.Context, base string) (*rates.LatestResponse, error)
}

// BatchFetcher fetches several rate tables through one Fetcher, and so through
// one shared cache backend.
type BatchFetcher struct {
	fetcher Fetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher Fetcher, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchLatest fetches the latest rate table for each base. Duplicate bases are
// fetched once. On the first failure the remaining fetches are cancelled and
// the tables fetched so far are returned together with the error.
func (bf *BatchFetcher) FetchLatest(ctx context.Context, bases []string) (map[string]*rates.LatestResponse, error) {
	start := time.Now()

	unique := dedupe(bases)
	results := make(map[string]*rates.LatestResponse, len(unique))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for _, base := range unique {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, bf.config.Timeout)
			defer cancel()

			table, err := bf.fetcher.LatestRates(fetchCtx, base)
			if err != nil {
				log.Warn().Err(err).Str("base", base).Msg("Rate table fetch failed")
				return fmt.Errorf("fetch %s: %w", base, err)
			}

			mu.Lock()
			results[base] = table
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("fetched", len(results)).
			Int("total", len(unique)).
			Msg("Batch error - returning partial results")
		return results, err
	}

	log.Debug().
		Int("bases", len(unique)).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results, nil
}

// dedupe keeps the first occurrence of each normalized code, preserving order.
func dedupe(bases []string) []string {
	seen := make(map[string]struct{}, len(bases))
	out := make([]string, 0, len(bases))
	for _, b := range bases {
		code := rates.NormalizeCode(b)
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
