// Package metrics is the observability component (C7): atomic counters
// and gauges for pool health, fetch outcomes, and cache occupancy, plus a
// Prometheus-text exposition handler. Grounded directly on the teacher's
// metrics.go.
package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

var startTime = time.Now()

// HTTP metrics.
var (
	HTTPRequestsTotal atomic.Int64
	HTTPErrorsTotal   atomic.Int64
)

// Relay pool metrics.
var (
	RelayConnectionsActive atomic.Int64
	RelaySubscribesTotal   atomic.Int64
	RelayTimeoutsTotal     atomic.Int64
	EventsIngestedTotal    atomic.Int64
	EventsDroppedTotal     atomic.Int64
)

// Fetch coordinator metrics.
var (
	PrimaryFetchesTotal  atomic.Int64
	PrimaryFetchJoins    atomic.Int64
	RefreshSpawnedTotal  atomic.Int64
	RefreshStuckRespawns atomic.Int64
	RefreshEntriesGauge  atomic.Int64
)

// Render-cache metrics.
var (
	CacheHitsTotal   atomic.Int64
	CacheMissesTotal atomic.Int64
)

// SetStartTime lets main.go pin the process start time read back by the
// uptime gauge; tests may call it to make uptime deterministic.
func SetStartTime(t time.Time) { startTime = t }

// Uptime returns the time elapsed since startTime, used by the health
// endpoint as well as the /metrics exposition below.
func Uptime() time.Duration { return time.Since(startTime) }

// Handler serves Prometheus-compatible plaintext exposition at /metrics.
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	fmt.Fprintf(w, "# HELP notecrumbs_build_info Build and runtime information\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_build_info gauge\n")
	fmt.Fprintf(w, "notecrumbs_build_info{go_version=%q} 1\n\n", runtime.Version())

	fmt.Fprintf(w, "# HELP process_start_time_seconds Unix timestamp of process start\n")
	fmt.Fprintf(w, "# TYPE process_start_time_seconds gauge\n")
	fmt.Fprintf(w, "process_start_time_seconds %d\n\n", startTime.Unix())

	fmt.Fprintf(w, "# HELP process_uptime_seconds Time since process started\n")
	fmt.Fprintf(w, "# TYPE process_uptime_seconds gauge\n")
	fmt.Fprintf(w, "process_uptime_seconds %.0f\n\n", Uptime().Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "# HELP go_goroutines Number of active goroutines\n")
	fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
	fmt.Fprintf(w, "go_goroutines %d\n\n", runtime.NumGoroutine())

	fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Currently allocated memory in bytes\n")
	fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n\n", mem.Alloc)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", HTTPRequestsTotal.Load())

	fmt.Fprintf(w, "# HELP http_errors_total Total number of HTTP 5xx errors\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total %d\n\n", HTTPErrorsTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_relay_connections_active Active pooled relay connections\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_relay_connections_active gauge\n")
	fmt.Fprintf(w, "notecrumbs_relay_connections_active %d\n\n", RelayConnectionsActive.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_relay_subscribes_total Total REQ subscriptions issued\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_relay_subscribes_total counter\n")
	fmt.Fprintf(w, "notecrumbs_relay_subscribes_total %d\n\n", RelaySubscribesTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_relay_timeouts_total Total relay fetches that hit their timeout\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_relay_timeouts_total counter\n")
	fmt.Fprintf(w, "notecrumbs_relay_timeouts_total %d\n\n", RelayTimeoutsTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_events_ingested_total Total events accepted into the store\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_events_ingested_total counter\n")
	fmt.Fprintf(w, "notecrumbs_events_ingested_total %d\n\n", EventsIngestedTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_events_dropped_total Total events rejected (bad signature/malformed)\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_events_dropped_total counter\n")
	fmt.Fprintf(w, "notecrumbs_events_dropped_total %d\n\n", EventsDroppedTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_primary_fetches_total Total primary (blocking) fetches started\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_primary_fetches_total counter\n")
	fmt.Fprintf(w, "notecrumbs_primary_fetches_total %d\n\n", PrimaryFetchesTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_primary_fetch_joins_total Total requests that joined an inflight primary fetch\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_primary_fetch_joins_total counter\n")
	fmt.Fprintf(w, "notecrumbs_primary_fetch_joins_total %d\n\n", PrimaryFetchJoins.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_refresh_spawned_total Total debounced background refreshes spawned\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_refresh_spawned_total counter\n")
	fmt.Fprintf(w, "notecrumbs_refresh_spawned_total %d\n\n", RefreshSpawnedTotal.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_refresh_stuck_respawns_total Total refreshes cancelled and respawned after the stuck threshold\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_refresh_stuck_respawns_total counter\n")
	fmt.Fprintf(w, "notecrumbs_refresh_stuck_respawns_total %d\n\n", RefreshStuckRespawns.Load())

	fmt.Fprintf(w, "# HELP notecrumbs_refresh_entries Current size of the debounced-refresh state map\n")
	fmt.Fprintf(w, "# TYPE notecrumbs_refresh_entries gauge\n")
	fmt.Fprintf(w, "notecrumbs_refresh_entries %d\n\n", RefreshEntriesGauge.Load())

	cacheHits := CacheHitsTotal.Load()
	cacheMisses := CacheMissesTotal.Load()
	fmt.Fprintf(w, "# HELP cache_hits_total Total render-cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total render-cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	var hitRatio float64
	if total := cacheHits + cacheMisses; total > 0 {
		hitRatio = float64(cacheHits) / float64(total)
	}
	fmt.Fprintf(w, "# HELP cache_hit_ratio Render-cache hit ratio (0-1)\n")
	fmt.Fprintf(w, "# TYPE cache_hit_ratio gauge\n")
	fmt.Fprintf(w, "cache_hit_ratio %.4f\n", hitRatio)
}
