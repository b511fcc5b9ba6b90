package cache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchangerate_cache_hits_total",
			Help: "Total number of exchange rate cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses by backend and reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchangerate_cache_misses_total",
			Help: "Total number of exchange rate cache misses",
		},
		[]string{"backend", "reason"}, // "not_found", "expired"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchangerate_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set"
	)
)

func observeGet(backend string, err error) {
	switch {
	case err == nil:
		CacheHits.WithLabelValues(backend).Inc()
	case errors.Is(err, ErrNotFound):
		CacheMisses.WithLabelValues(backend, "not_found").Inc()
	case errors.Is(err, ErrExpired):
		CacheMisses.WithLabelValues(backend, "expired").Inc()
	default:
		CacheErrors.WithLabelValues(backend, "get").Inc()
	}
}

func observeSet(backend string, err error) {
	if err != nil {
		CacheErrors.WithLabelValues(backend, "set").Inc()
	}
}
