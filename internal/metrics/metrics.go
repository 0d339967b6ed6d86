// ABOUTME: Prometheus metrics for tool calls, payment challenges, and backend failures.
// ABOUTME: Implements routing.Observer and serves a scrape handler.

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/rendezvous-mcp/internal/l402"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "rendezvous"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	challenges       *prometheus.CounterVec
	challengeSats    *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	sessions         prometheus.Gauge
}

// New creates and registers all collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_challenges_total",
			Help:      "L402 payment challenges returned by the routing backend.",
		}, []string{"operation", "degraded"}),
		challengeSats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_challenge_sats_total",
			Help:      "Sum of invoice amounts in challenges, in satoshis.",
		}, []string{"operation"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Routing backend failures other than payment required.",
		}, []string{"operation"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Active MCP sessions.",
		}),
	}
	m.registry.MustRegister(m.toolCalls, m.toolDuration, m.challenges, m.challengeSats, m.upstreamFailures, m.sessions)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveToolCall records one tool call.
func (m *Metrics) ObserveToolCall(tool, outcome string, d time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// SetSessions records the number of active sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// ChallengeIssued implements routing.Observer.
func (m *Metrics) ChallengeIssued(_ context.Context, op string, c l402.PaymentChallenge) {
	degraded := "false"
	if c.Degraded {
		degraded = "true"
	}
	m.challenges.WithLabelValues(op, degraded).Inc()
	m.challengeSats.WithLabelValues(op).Add(float64(c.AmountSats))
}

// UpstreamFailed implements routing.Observer.
func (m *Metrics) UpstreamFailed(_ context.Context, op string, _ error) {
	m.upstreamFailures.WithLabelValues(op).Inc()
}
