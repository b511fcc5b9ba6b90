// Package cache provides the TTL-aware response cache used by the exchange rate client.
//
// A cache is a Backend (memory, sqlite, redis) plus a small set of generic
// helpers that move values in and out of it:
//
// - Every entry carries CachedAt and ExpiresAt; expiry is checked on read
// - An entry is valid while now <= ExpiresAt (the boundary instant is still valid)
// - Typed entries store the canonical JSON of a Go value
// - Raw entries store an opaque JSON string and are returned unchanged
// - Misses are distinguished: ErrNotFound vs. ErrExpired
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	backend := cache.NewMemoryBackend()
//	defer backend.Close()
//
//	key := cache.NewKey("latest", "USD").String() // "latest:USD"
//
//	entry, err := cache.GetTyped[rates.LatestResponse](ctx, backend, key)
//	if cache.IsMiss(err) {
//		// Fetch from the API, then:
//		entry = cache.NewEntryWithSourceExpiration(resp, resp.TimeNextUpdateUnix, time.Now())
//		err = cache.SetTyped(ctx, backend, key, entry)
//	}
//
// # Raw Entries
//
//	now := time.Now()
//	err := cache.SetRaw(ctx, backend, "pair:USD:EUR", body, now, now.Add(cache.DefaultTTL))
//	raw, err := cache.GetRaw(ctx, backend, "pair:USD:EUR")
//
// # Expiry Sources
//
// NewEntry uses DefaultTTL (24h). NewEntryWithTTL takes an explicit duration.
// NewEntryWithSourceExpiration uses the API's time_next_update_unix and falls
// back to DefaultTTL when the upstream value is missing.
//
// # Metrics
//
//   - exchangerate_cache_hits_total{backend}
//   - exchangerate_cache_misses_total{backend,reason} - reason is "not_found" or "expired"
//   - exchangerate_cache_errors_total{backend,operation}
package cache
