// Package metrics documents the Prometheus metrics of the overlap service
// and exposes them over HTTP. The metrics are defined with promauto in the
// packages that record them (client, pagination, ratelimit, cache, compare).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers its metrics with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Catalog Metrics (pkg/client):
//   - overlap_catalog_requests_total{resource, status} (Counter)
//   - overlap_catalog_request_duration_seconds{resource} (Histogram)
//   - overlap_catalog_errors_total{class} (Counter): client, server, rate_limit, network
//   - overlap_client_retries_total{error_class} (Counter)
//   - overlap_client_retry_backoff_seconds{error_class} (Histogram)
//   - overlap_client_retry_exhausted_total{error_class} (Counter)
//
// Pagination Metrics (pkg/pagination):
//   - overlap_fetch_pages_total (Counter): pages fetched
//   - overlap_fetch_duration_seconds (Histogram): time to fetch a whole resource
//   - overlap_throttle_retries_total (Counter): batches re-issued after a throttle
//   - overlap_throttle_backoff_seconds (Histogram): wait before a re-issued batch
//   - overlap_throttle_exhausted_total (Counter): fetches abandoned
//
// Throttle State Metrics (pkg/ratelimit):
//   - overlap_throttle_signals_total (Counter)
//   - overlap_cooldown_waits_total (Counter)
//   - overlap_cooldown_wait_seconds (Histogram)
//
// Cache Metrics (pkg/cache):
//   - overlap_cache_hits_total{layer="redis"} (Counter)
//   - overlap_cache_misses_total (Counter)
//   - overlap_cache_size_bytes{layer="redis"} (Gauge)
//   - overlap_cache_errors_total{operation} (Counter)
//
// Comparison Metrics (pkg/compare):
//   - overlap_comparisons_total{operation, kind} (Counter)
//   - overlap_comparison_duration_seconds{operation} (Histogram)
//
// Example Prometheus Queries:
//
//   # Throttled batch rate
//   rate(overlap_throttle_retries_total[5m])
//
//   # Failed comparisons by kind
//   sum by (kind) (rate(overlap_comparisons_total{kind!="ok"}[5m]))
//
//   # Cache hit rate
//   sum(rate(overlap_cache_hits_total[5m])) /
//   (sum(rate(overlap_cache_hits_total[5m])) + sum(rate(overlap_cache_misses_total[5m])))
//
//   # P95 catalog latency
//   histogram_quantile(0.95, rate(overlap_catalog_request_duration_seconds_bucket[5m]))
