// Package metrics provides Prometheus instrumentation for the exposure engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AggregationsTotal counts net exposure aggregations.
	AggregationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hedge_aggregations_total",
		Help: "Total number of net exposure aggregations",
	})

	// NetBuckets tracks the number of product|period buckets in the last aggregation.
	NetBuckets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_net_buckets",
		Help: "Buckets produced by the last net exposure aggregation",
	})

	// RankingsTotal counts RFQ rankings, partitioned by side.
	RankingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_rfq_rankings_total",
		Help: "Total number of RFQ rankings computed",
	}, []string{"side"})

	// QuotesTotal counts quotes received, partitioned by leg side.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_rfq_quotes_total",
		Help: "Total number of RFQ quotes received",
	}, []string{"leg_side"})

	// LegValidationFailures counts rejected RFQ trade previews, partitioned by reason.
	LegValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_leg_validation_failures_total",
		Help: "RFQ leg payloads rejected by validation",
	}, []string{"reason"})

	// SnapshotsCreated counts persisted MTM snapshots by object type.
	SnapshotsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_mtm_snapshots_total",
		Help: "MTM snapshots created",
	}, []string{"object_type"})

	// ValuationsTotal counts hedge valuations by source (upstream, computed, undefined).
	ValuationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_mtm_valuations_total",
		Help: "Hedge valuations served, by source",
	}, []string{"source"})

	// OverHedgeRejections counts hedges rejected by the coverage limiter.
	OverHedgeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hedge_over_hedge_rejections_total",
		Help: "Proposed hedges rejected by the coverage limiter",
	})

	// RateLimitRejections counts requests rejected by the API rate limiter.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hedge_rate_limit_rejections_total",
		Help: "Requests rejected by the API rate limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hedge_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hedge_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern uses the chi route pattern for the path label to avoid
// one series per hedge or RFQ id.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade pass through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
