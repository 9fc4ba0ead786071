// Package metrics exposes Prometheus collectors for the draw service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roulette",
			Subsystem: "draw",
			Name:      "operations_total",
			Help:      "Draw operations by name and outcome.",
		},
		[]string{"operation", "result"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roulette",
			Subsystem: "draw",
			Name:      "transitions_total",
			Help:      "Committed phase transitions by target phase.",
		},
		[]string{"phase"},
	)

	participantsAtClose = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "roulette",
			Subsystem: "draw",
			Name:      "participants_at_close",
			Help:      "Participant count when registrations are closed.",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 10), // 2 to 1024
		},
	)

	hubDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roulette",
			Subsystem: "gamehub",
			Name:      "call_duration_seconds",
			Help:      "Duration of game hub reports.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"success"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roulette",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		operations,
		transitions,
		participantsAtClose,
		hubDuration,
		httpRequests,
		collectors.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordOperation counts one call of operation.
func RecordOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operations.WithLabelValues(operation, result).Inc()
}

// RecordTransition counts a committed move into phase.
func RecordTransition(phase string) {
	transitions.WithLabelValues(phase).Inc()
}

// RecordClose observes the frozen participant count.
func RecordClose(count uint32) {
	participantsAtClose.Observe(float64(count))
}

// RecordHubCall observes how long a game hub report took.
func RecordHubCall(start time.Time, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	hubDuration.WithLabelValues(success).Observe(time.Since(start).Seconds())
}

// RecordHTTPRequest counts a handled request.
func RecordHTTPRequest(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
