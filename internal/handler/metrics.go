package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/inkpost/inkpost/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounter(w, "inkpost_posts_created_total", "Posts created.", snap.PostsCreated)
	writeCounter(w, "inkpost_posts_updated_total", "Posts updated.", snap.PostsUpdated)
	writeCounter(w, "inkpost_posts_deleted_total", "Posts deleted.", snap.PostsDeleted)

	writeMetric(w, "# HELP inkpost_post_cache_requests_total Post detail cache lookups.\n")
	writeMetric(w, "# TYPE inkpost_post_cache_requests_total counter\n")
	writeMetric(w, "inkpost_post_cache_requests_total{result=\"hit\"} %d\n", snap.PostCacheHits)
	writeMetric(w, "inkpost_post_cache_requests_total{result=\"miss\"} %d\n", snap.PostCacheMisses)

	writeMetric(w, "# HELP inkpost_post_search_duration_seconds Feed query latency.\n")
	writeMetric(w, "# TYPE inkpost_post_search_duration_seconds summary\n")
	writeMetric(w, "inkpost_post_search_duration_seconds_count %d\n", snap.SearchDurationCount)
	writeMetric(w, "inkpost_post_search_duration_seconds_sum %.6f\n", float64(snap.SearchDurationTotalNs)/1e9)

	writeMetric(w, "# HELP inkpost_logins_total Credential login attempts by outcome.\n")
	writeMetric(w, "# TYPE inkpost_logins_total counter\n")
	writeMetric(w, "inkpost_logins_total{result=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "inkpost_logins_total{result=\"failed\"} %d\n", snap.LoginsFailed)
	writeMetric(w, "inkpost_logins_total{result=\"rate_limited\"} %d\n", snap.LoginsRateLimited)
}

func writeCounter(w io.Writer, name, help string, value uint64) {
	writeMetric(w, "# HELP %s %s\n", name, help)
	writeMetric(w, "# TYPE %s counter\n", name)
	writeMetric(w, "%s %d\n", name, value)
}

func writeMetric(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
