package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenizerd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokenizerd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tokenizerd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	tokenizerCountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenizer_count_total",
			Help: "Number of token counting operations",
		},
		[]string{"model", "input_model"},
	)

	tokenCountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_count_total",
			Help: "Total number of tokens processed",
		},
		[]string{"model", "input_model"},
	)

	tokenizerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenizer_latency_seconds",
			Help:    "Tokenizer processing time in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"model", "input_model"},
	)

	activeTokenizers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tokenizers",
			Help: "Number of currently loaded tokenizers",
		},
	)

	serviceInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokenizer_service_info",
			Help: "Information about the tokenizer service",
		},
		[]string{"version", "description"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight,
		tokenizerCountTotal, tokenCountTotal, tokenizerLatency, activeTokenizers, serviceInfo)
	serviceInfo.WithLabelValues(serviceVersion, "Universal Tokenizer Service").Set(1)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus. The path label is
// resolved after routing so chi has filled in the route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// observeCount records one count request against the tokenizer that served it
// and the model the client asked for.
func observeCount(model, inputModel string, tokens int, d time.Duration) {
	tokenizerCountTotal.WithLabelValues(model, inputModel).Inc()
	tokenCountTotal.WithLabelValues(model, inputModel).Add(float64(tokens))
	tokenizerLatency.WithLabelValues(model, inputModel).Observe(d.Seconds())
}
