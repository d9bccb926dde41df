// Package observability provides Prometheus metrics, HTTP middleware and
// OpenTelemetry tracing setup for sandbox-mcp.
package observability

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets defines histogram buckets suited for sandboxed code
// execution, ranging from 10ms to 120s.
var ExecutionBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_mcp_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_mcp_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"method"},
	)

	// ToolCallsTotal counts tool calls by tool name and outcome
	// (success, unknown_tool, invalid_arguments, provider_error, error).
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_mcp_tool_calls_total",
			Help: "Tool calls",
		},
		[]string{"tool", "status"},
	)

	// ToolCallDuration records tool call duration in seconds.
	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_mcp_tool_call_duration_seconds",
			Help:    "Tool call duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"tool"},
	)

	// SandboxExecutionsTotal counts calls into the sandbox provider.
	SandboxExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_mcp_sandbox_executions_total",
			Help: "Sandbox executions",
		},
		[]string{"provider", "status"},
	)

	// SandboxLatency records sandbox round-trip latency in seconds.
	SandboxLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_mcp_sandbox_latency_seconds",
			Help:    "Sandbox latency",
			Buckets: ExecutionBuckets,
		},
		[]string{"provider"},
	)

	// SandboxSessionsActive tracks open sandbox sessions (pooled or not).
	SandboxSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandbox_mcp_sandbox_sessions_active",
			Help: "Open sandbox sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ToolCallsTotal,
		ToolCallDuration,
		SandboxExecutionsTotal,
		SandboxLatency,
		SandboxSessionsActive,
	)
}
