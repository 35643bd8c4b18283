// Package metrics provides the Prometheus registry and HTTP exposition for
// the KOS downloader. All metrics are defined in their respective packages
// (client, cache, retry, downloader) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the downloader.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where NewServer exposes metrics.
const Path = "/metrics"

// Handler returns the Prometheus exposition handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer returns an HTTP server exposing Handler on Path and a /health
// probe. The caller starts and shuts it down.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - kos_requests_total{resource, status} (Counter): Requests by resource and HTTP status
//   - kos_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - kos_errors_total{class} (Counter): Transport errors by class
//
// Cache Metrics (pkg/cache):
//   - kos_cache_hits_total{backend} (Counter): Lookups answered from the cache
//   - kos_cache_misses_total{backend} (Counter): Lookups that missed
//   - kos_cache_writes_total{backend} (Counter): Entries written
//   - kos_cache_errors_total{backend, operation} (Counter): Cache operation errors
//
// Retry Metrics (pkg/retry):
//   - kos_retries_total (Counter): Retries granted by the ledger
//   - kos_retry_exhausted_total (Counter): URLs that exhausted their budget
//
// Scheduler Metrics (pkg/downloader):
//   - kos_attempts_total{outcome} (Counter): Resolved attempts (accepted, retried, abandoned, fatal)
//   - kos_inflight_requests (Gauge): Fetches awaiting a response
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(kos_cache_hits_total[5m])) /
//   (sum(rate(kos_cache_hits_total[5m])) + sum(rate(kos_cache_misses_total[5m])))
//
//   # Abandoned Pages
//   increase(kos_attempts_total{outcome="abandoned"}[1h])
//
//   # Connection Ceiling Utilisation
//   max_over_time(kos_inflight_requests[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(kos_request_duration_seconds_bucket[5m]))
