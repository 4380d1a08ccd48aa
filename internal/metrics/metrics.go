// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "incubation_portal"

var (
	// Registry holds the portal's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	couponOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "outcomes_total",
			Help:      "Coupon validations and redemptions by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	approvalResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approval",
			Name:      "resolutions_total",
			Help:      "Approval-link resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	notificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "failures_total",
			Help:      "Notifications that could not be published or delivered.",
		},
		[]string{"kind"},
	)

	messagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "messages_consumed_total",
			Help:      "Broker messages processed by the consumer.",
		},
		[]string{"queue", "result"},
	)

	tokensSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approval",
			Name:      "tokens_swept_total",
			Help:      "Stale approval tokens removed by the sweeper.",
		},
	)

	activeTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "approval",
			Name:      "active_tokens",
			Help:      "Unused, unexpired approval tokens at the last sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		couponOutcomes,
		approvalResolutions,
		notificationFailures,
		messagesConsumed,
		tokensSwept,
		activeTokens,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted bumps the in-flight gauge and returns the func that
// records the finished request.
func RequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpInFlight.Inc()
	return func(method, route string, status int) {
		httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordCoupon counts one coupon operation ("validate" or "redeem").
func RecordCoupon(operation, outcome string) {
	couponOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordResolution counts one approval-link resolution.
func RecordResolution(outcome string) {
	approvalResolutions.WithLabelValues(outcome).Inc()
}

// RecordNotificationFailure counts a notification that was dropped.
func RecordNotificationFailure(kind string) {
	notificationFailures.WithLabelValues(kind).Inc()
}

// RecordConsumed counts a message taken off queue.
func RecordConsumed(queue string, ok bool) {
	result := "ack"
	if !ok {
		result = "nack"
	}
	messagesConsumed.WithLabelValues(queue, result).Inc()
}

// RecordSweep records a sweeper run.
func RecordSweep(removed int64, active int) {
	if removed > 0 {
		tokensSwept.Add(float64(removed))
	}
	activeTokens.Set(float64(active))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
