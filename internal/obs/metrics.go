package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service reports ready, 0 otherwise.",
	})
)

// Sale metrics.
var (
	salePurchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_purchases_total",
			Help: "Committed purchases per sale phase.",
		},
		[]string{"phase"},
	)

	saleUnitsSoldTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_units_sold_total",
			Help: "Units granted to buyers per sale phase.",
		},
		[]string{"phase"},
	)

	saleRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_rejections_total",
			Help: "Rejected purchase attempts per phase and reason.",
		},
		[]string{"phase", "reason"},
	)

	saleTokensIssued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sale_tokens_issued",
		Help: "Tokens ever issued, purchases and direct allocations combined.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration, readyGauge,
		salePurchasesTotal, saleUnitsSoldTotal, saleRejectionsTotal, saleTokensIssued,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ready bool) {
	if ready {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// ObservePurchase records a committed purchase.
func ObservePurchase(phase string, units uint64) {
	salePurchasesTotal.WithLabelValues(phase).Inc()
	saleUnitsSoldTotal.WithLabelValues(phase).Add(float64(units))
}

// ObserveRejection records a rejected purchase attempt.
func ObserveRejection(phase, reason string) {
	saleRejectionsTotal.WithLabelValues(phase, reason).Inc()
}

// SetTokensIssued mirrors the issuance ledger total into the gauge.
func SetTokensIssued(total uint64) {
	saleTokensIssued.Set(float64(total))
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-resource path segments so the metrics label
// set stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	switch {
	case strings.HasPrefix(path, "/v1/tokens/"):
		return "/v1/tokens/:id"
	case strings.HasPrefix(path, "/v1/addresses/") && strings.HasSuffix(path, "/balance"):
		return "/v1/addresses/:address/balance"
	case strings.HasPrefix(path, "/v1/sale/phases/") && strings.Contains(path, "/buyers/"):
		return "/v1/sale/phases/:phase/buyers/:address"
	}
	return path
}

// statusWriter captures the response code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
