package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sale commit outcomes recorded by SaleCommitted.
const (
	CommitStatusCommitted = "committed"
	CommitStatusPartial   = "partial"
	CommitStatusFailed    = "failed"
)

// Metrics collects Prometheus metrics for the point of sale.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	salesCommitted    *prometheus.CounterVec
	lotUpdateFailures prometheus.Counter
	cartLines         prometheus.Gauge
}

// NewMetrics builds a private registry with the HTTP and sale collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmapos_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmapos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmapos_sales_committed_total",
		Help: "Finalized sales by commit outcome.",
	}, []string{"status"})
	lotFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pharmapos_lot_update_failures_total",
		Help: "Lot stock write-backs that failed after the sale was recorded.",
	})
	cartLines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pharmapos_cart_lines",
		Help: "Lines currently held in the open cart.",
	})
	registry.MustRegister(requests, duration, sales, lotFailures, cartLines)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		salesCommitted:    sales,
		lotUpdateFailures: lotFailures,
		cartLines:         cartLines,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// SaleCommitted counts a finalized sale under status.
func (m *Metrics) SaleCommitted(status string) {
	if m == nil {
		return
	}
	m.salesCommitted.WithLabelValues(status).Inc()
}

// LotUpdatesFailed adds n failed lot write-backs.
func (m *Metrics) LotUpdatesFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lotUpdateFailures.Add(float64(n))
}

// SetCartLines reports the open cart size.
func (m *Metrics) SetCartLines(n int) {
	if m == nil {
		return
	}
	m.cartLines.Set(float64(n))
}

// Registerer exposes the registry for collectors owned by other packages.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
