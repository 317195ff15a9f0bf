package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Vendor metrics
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec

	// Quota metrics
	QuotaDecisions *prometheus.CounterVec

	// Premium code metrics
	CodeVerifications *prometheus.CounterVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		UpstreamLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_latency_seconds",
				Help:    "Vendor chat-completion response latency in seconds",
				Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"vendor", "model"},
		),
		UpstreamRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Total number of requests to chat-completion vendors",
			},
			[]string{"vendor", "model", "status"},
		),
		UpstreamErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_errors_total",
				Help: "Total number of errors from chat-completion vendors",
			},
			[]string{"vendor", "error_type"},
		),
		QuotaDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_decisions_total",
				Help: "Total number of quota guard decisions",
			},
			[]string{"decision"},
		),
		CodeVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "code_verifications_total",
				Help: "Total number of premium code verification attempts",
			},
			[]string{"result"},
		),
	}

	return metrics
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records HTTP metrics for each request
func MetricsMiddleware() gin.HandlerFunc {
	m := Init()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.HTTPRequestsInFlight.Inc()
		c.Next()
		m.HTTPRequestsInFlight.Dec()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordUpstream records a completed vendor call
func RecordUpstream(vendor, model string, status int, latency time.Duration) {
	if metrics == nil {
		return
	}
	metrics.UpstreamLatency.WithLabelValues(vendor, model).Observe(latency.Seconds())
	metrics.UpstreamRequests.WithLabelValues(vendor, model, strconv.Itoa(status)).Inc()
}

// RecordUpstreamError records a failed vendor call
func RecordUpstreamError(vendor, errorType string) {
	if metrics == nil {
		return
	}
	metrics.UpstreamErrors.WithLabelValues(vendor, errorType).Inc()
}

// RecordQuotaDecision records a quota guard decision
func RecordQuotaDecision(allowed bool) {
	if metrics == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	metrics.QuotaDecisions.WithLabelValues(decision).Inc()
}

// RecordCodeVerification records a premium code verification attempt
func RecordCodeVerification(ok bool) {
	if metrics == nil {
		return
	}
	result := "invalid"
	if ok {
		result = "valid"
	}
	metrics.CodeVerifications.WithLabelValues(result).Inc()
}
