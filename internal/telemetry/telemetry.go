package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry holds the gateway's prometheus instruments on a private
// registry so tests can build as many instances as they like.
type Telemetry struct {
	registry *prometheus.Registry

	chatRequests    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	connectAttempts *prometheus.CounterVec
}

func New() *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		registry: reg,
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webscout",
			Name:      "chat_requests_total",
			Help:      "Chat requests by route and HTTP status.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webscout",
			Name:      "request_duration_seconds",
			Help:      "Wall-clock time spent serving a chat request.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90, 120},
		}, []string{"route"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webscout",
			Name:      "tool_calls_total",
			Help:      "Remote tool invocations by tool name.",
		}, []string{"tool"}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webscout",
			Name:      "mcp_connect_attempts_total",
			Help:      "Tool server connect attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		t.chatRequests, t.requestDuration, t.toolCalls, t.connectAttempts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return t
}

// Handler serves the registry in the standard exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) ObserveChat(route string, status int, elapsed time.Duration) {
	t.chatRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	t.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (t *Telemetry) CountToolCall(tool string) {
	t.toolCalls.WithLabelValues(tool).Inc()
}

// CountConnectAttempt is wired into the connection manager's hook.
func (t *Telemetry) CountConnectAttempt(ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	t.connectAttempts.WithLabelValues(outcome).Inc()
}
