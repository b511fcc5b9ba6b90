// Package metrics exposes the Prometheus registry used by the exchange rate client.
// Collectors are defined in their respective packages (client, cache)
// to keep those packages free of a dependency on this one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the exchange rate client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered collector in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - exchangerate_cache_hits_total{backend} (Counter): Cache hits by backend
//   - exchangerate_cache_misses_total{backend, reason} (Counter): Misses by reason (not_found, expired)
//   - exchangerate_cache_errors_total{backend, operation} (Counter): Backend or serialization failures
//
// Request Metrics (pkg/client):
//   - exchangerate_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and HTTP status
//   - exchangerate_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(exchangerate_cache_hits_total[5m])) /
//   (sum(rate(exchangerate_cache_hits_total[5m])) + sum(rate(exchangerate_cache_misses_total[5m])))
//
//   # Upstream Error Rate
//   sum(rate(exchangerate_requests_total{status!~"2.."}[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(exchangerate_request_duration_seconds_bucket[5m]))
