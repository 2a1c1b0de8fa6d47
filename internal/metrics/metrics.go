// Package metrics exposes Prometheus collectors for HTTP traffic and for the
// stock lifecycle of quotes and sales.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maremotors/backoffice/internal/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	DocumentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_transitions_total",
			Help: "Document status changes applied by the reconciler",
		},
		[]string{"kind", "from", "to"},
	)
	StockRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_rejections_total",
			Help: "Approvals rejected for insufficient stock",
		},
		[]string{"kind"},
	)
	StockUnitsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_units_moved_total",
			Help: "Product units taken from or returned to stock",
		},
		[]string{"direction"},
	)
)

// NormalizePath keeps the first path segment so ids do not explode cardinality.
func NormalizePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if idx := strings.Index(p, "/"); idx >= 0 {
		p = p[:idx]
	}
	if p == "" {
		return "root"
	}
	return p
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := httpx.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		path := NormalizePath(r.URL.Path)
		RequestTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.Status)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler { return promhttp.Handler() }

// ObserveTransition records a status change and the units it moved.
func ObserveTransition(kind, from, to string, units int) {
	DocumentTransitions.WithLabelValues(kind, from, to).Inc()
	ObserveUnits(units)
}

// ObserveUnits records units leaving (positive) or returning to (negative) stock.
func ObserveUnits(units int) {
	switch {
	case units > 0:
		StockUnitsMoved.WithLabelValues("out").Add(float64(units))
	case units < 0:
		StockUnitsMoved.WithLabelValues("in").Add(float64(-units))
	}
}
