package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orders_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// PaymentOperations counts gateway operations by provider and outcome.
	PaymentOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_payment_operations_total",
		Help: "Payment gateway operations by provider, operation and outcome.",
	}, []string{"provider", "operation", "outcome"})

	// WebhookEvents counts inbound webhook deliveries by provider and result.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_webhook_events_total",
		Help: "Inbound webhook deliveries by provider and result.",
	}, []string{"provider", "result"})
)

// Metrics records request counts and latencies per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}
