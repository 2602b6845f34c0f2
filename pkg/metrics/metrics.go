// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringlink_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// CallEventsTotal counts provider events applied to call sessions.
	CallEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlink_call_events_total",
			Help: "Provider events applied to call sessions by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// CallTerminalTotal counts sessions entering a terminal status.
	CallTerminalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlink_call_terminal_total",
			Help: "Call sessions reaching a terminal status",
		},
		[]string{"status"},
	)

	// GatewayRequestDuration tracks provider API latency.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringlink_gateway_request_duration_seconds",
			Help:    "Call provider request duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"action", "result"},
	)

	// LedgerRejectsTotal counts rejected conversation writes.
	LedgerRejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlink_ledger_rejects_total",
			Help: "Conversation writes rejected by rule",
		},
		[]string{"reason"},
	)

	// PollRunsTotal counts sessions handled by the periodic poller.
	PollRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringlink_poll_sessions_total",
			Help: "Sessions visited by the periodic poller by result",
		},
		[]string{"result"},
	)

	// PushConnectionsActive tracks live websocket connections.
	PushConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ringlink_push_connections_active",
			Help: "Number of active push connections",
		},
	)

	// PushDroppedTotal counts notifications dropped because the queue was full.
	PushDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ringlink_push_dropped_total",
			Help: "Notifications dropped on a full push queue",
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, path string, status int, duration time.Duration) {
	RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordCallEvent records a push or poll outcome.
func RecordCallEvent(source, outcome string) {
	CallEventsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordTerminal records a session entering a terminal status.
func RecordTerminal(status int32) {
	CallTerminalTotal.WithLabelValues(strconv.Itoa(int(status))).Inc()
}

// RecordGateway records one provider request.
func RecordGateway(action string, ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	GatewayRequestDuration.WithLabelValues(action, result).Observe(duration.Seconds())
}

// RecordLedgerReject records a rejected ledger write.
func RecordLedgerReject(reason string) {
	LedgerRejectsTotal.WithLabelValues(reason).Inc()
}

// RecordPoll records a poller visit.
func RecordPoll(result string) {
	PollRunsTotal.WithLabelValues(result).Inc()
}
