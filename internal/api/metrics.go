package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the engine. Registered once on the default
// registry; /metrics serves them via promhttp.

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringbreaker_uploads_total",
		Help: "Ledger uploads processed, by outcome.",
	}, []string{"outcome"})

	detectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ringbreaker_detection_duration_seconds",
		Help:    "Wall-clock duration of the detection stage per upload.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	suspiciousFlagged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ringbreaker_suspicious_accounts",
		Help: "Accounts flagged by the most recent analysis.",
	})

	ringsDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ringbreaker_fraud_rings",
		Help: "Fraud rings detected by the most recent analysis.",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ringbreaker_http_request_duration_seconds",
		Help:    "HTTP request latency by route, method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// MetricsMiddleware records per-request latency. Uses the route template
// (c.FullPath) so path parameters do not explode the label space.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
