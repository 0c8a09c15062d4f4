// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay metrics
var (
	// RelayConnectedListeners tracks currently connected listener clients
	RelayConnectedListeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connected_listeners",
			Help: "Number of currently connected listener clients",
		},
	)

	// RelayFragmentsTotal tracks audio fragments fanned out to listeners
	RelayFragmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_fragments_total",
			Help: "Total audio fragments fanned out to listeners",
		},
	)

	// RelaySlowListenersEvicted tracks listeners dropped because their send buffer filled
	RelaySlowListenersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_slow_listeners_evicted_total",
			Help: "Total listeners evicted because their send buffer was full",
		},
	)

	// RelayCommandChannelDepth tracks current hub command channel depth
	RelayCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_command_channel_depth",
			Help: "Current relay hub command channel depth",
		},
	)

	// RelayPanicsTotal tracks hub panic recoveries
	RelayPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_panics_total",
			Help: "Total relay hub panic recoveries",
		},
	)

	// RelayStopTimeoutsTotal tracks hub stops that exceeded the stop timeout
	RelayStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_stop_timeouts_total",
			Help: "Relay hub stops that exceeded timeout",
		},
	)

	// ListenerMessageSendDuration tracks per-message websocket write latency
	ListenerMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listener_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// ListenerPingFailures tracks failed pings to listener connections
	ListenerPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listener_ping_failures_total",
			Help: "Total failed pings to listener connections",
		},
	)
)

// Session metrics
var (
	// SessionTransitionsTotal tracks state machine transitions by kind
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Live session state machine transitions by kind",
		},
		[]string{"transition"},
	)

	// SessionPreemptionsTotal tracks live sessions finalized by a new Start
	SessionPreemptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_preemptions_total",
			Help: "Live sessions finalized because a new broadcast started",
		},
	)

	// SessionDegradedStartsTotal tracks sessions started without a recording sink
	SessionDegradedStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_degraded_starts_total",
			Help: "Sessions started live but without a recording sink",
		},
	)
)

// Recording sink metrics
var (
	// SinkBytesWrittenTotal tracks bytes appended to recording files
	SinkBytesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sink_bytes_written_total",
			Help: "Total bytes appended to recording files",
		},
	)

	// SinkWriteErrorsTotal tracks dropped fragments due to append failures
	SinkWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sink_write_errors_total",
			Help: "Total fragments dropped due to recording append failures",
		},
	)

	// SinkOpenFailuresTotal tracks recording files that could not be opened
	SinkOpenFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sink_open_failures_total",
			Help: "Total recording files that could not be opened",
		},
	)
)

// Gateway metrics
var (
	// GatewayConnectionsRejected tracks listener connections rejected by limits
	GatewayConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_connections_rejected_total",
			Help: "Listener connections rejected by connection limits, by reason",
		},
		[]string{"reason"},
	)

	// GatewayBroadcasterEvents tracks control events received from broadcasters
	GatewayBroadcasterEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_broadcaster_events_total",
			Help: "Control events received from broadcaster connections, by event",
		},
		[]string{"event"},
	)
)

// HTTP metrics
var (
	// HTTPErrorsTotal tracks HTTP errors by type
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Presence metrics
var (
	// PresenceOpsTotal tracks presence store operations by operation and status
	PresenceOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_operations_total",
			Help: "Presence store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpsTotal tracks Redis commands by command name and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis command latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks failed Redis connection attempts
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
