package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes used as the "outcome" label of crack_submissions_total.
const (
	OutcomeAcceptedFirst  = "accepted_first"
	OutcomeAcceptedRepeat = "accepted_repeat"
	OutcomeMismatch       = "mismatch"
	OutcomeNotFound       = "not_found"
	OutcomeMisconfigured  = "misconfigured"
	OutcomeBadRequest     = "bad_request"
	OutcomeError          = "error"
)

var (
	crackRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crack_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	crackRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crack_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	crackSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crack_submissions_total",
		Help: "Total candidate submissions by outcome.",
	}, []string{"outcome"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			// Unmatched routes share one label so scanners cannot blow up cardinality.
			path = "unmatched"
		}

		crackRequestsTotal.WithLabelValues(method, path, status).Inc()
		crackRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSubmission records the outcome of one submission.
func RecordSubmission(outcome string) {
	crackSubmissionsTotal.WithLabelValues(outcome).Inc()
}
