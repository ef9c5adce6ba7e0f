package mcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsPrefix is prepended to every metric name.
const MetricsPrefix = "mcp_bridge_"

// Outcome labels of the requests counter.
const (
	OutcomeResult       = "result"
	OutcomeError        = "error"
	OutcomeNotification = "notification"
	OutcomeDropped      = "dropped"
)

// Status labels of the tool calls counter.
const (
	ToolStatusOK       = "ok"
	ToolStatusError    = "error"
	ToolStatusNotFound = "not_found"
)

// Metrics records server activity as prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	sessionsActive prometheus.Gauge
	sessionsOpened prometheus.Counter
	sendFailures   prometheus.Counter
	requests       *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "sessions_active",
			Help: "Number of open SSE sessions",
		}),
		sessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "sessions_opened_total",
			Help: "Number of SSE sessions opened",
		}),
		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "session_send_failures_total",
			Help: "Number of frames that could not be written to a session",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "rpc_requests_total",
			Help: "Number of JSON-RPC messages handled, by method and outcome",
		}, []string{"method", "outcome"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricsPrefix + "tool_calls_total",
			Help: "Number of tool invocations, by tool and status",
		}, []string{"tool", "status"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricsPrefix + "tool_call_duration_seconds",
			Help:    "Time spent executing tools",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool"}),
	}
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) sendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) request(method, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) toolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	if status != ToolStatusNotFound {
		m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}
