// Package dispatch routes tool requests: it lists registered tools and
// executes calls by looking up the descriptor, validating arguments and
// invoking the handler bound to the tool.
//
// The dispatcher holds no per-call state, so any number of calls may be in
// flight at once. It never retries a failed call.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/observability"
	"github.com/rhuss/sandbox-mcp/pkg/tools/registry"
)

// ErrEmptyResult is returned when a handler succeeds without producing
// any content.
var ErrEmptyResult = errors.New("internal error: tool returned no content")

// Handler executes a tool with validated arguments.
type Handler func(ctx context.Context, args api.Arguments) ([]api.Content, error)

// Dispatcher executes tool calls against a Registry.
type Dispatcher struct {
	registry *registry.Registry
	tracer   trace.Tracer

	mu       sync.RWMutex
	handlers map[string]Handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTracer sets the tracer used for call spans. Defaults to the global
// provider's sandbox-mcp tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a Dispatcher over reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = observability.Tracer()
	}
	return d
}

// Bind attaches h to the registered tool name.
func (d *Dispatcher) Bind(name string, h Handler) error {
	if _, err := d.registry.Get(name); err != nil {
		return fmt.Errorf("bind handler: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
	return nil
}

// HandleListTools returns all advertised tools in registration order.
func (d *Dispatcher) HandleListTools() []api.ToolDescriptor {
	return d.registry.List()
}

// HandleCallTool validates raw against the tool's schema and invokes its
// handler. Errors are *api.UnknownToolError, *api.SchemaValidationError,
// or whatever the handler returned (typically *api.ExecutionProviderError).
func (d *Dispatcher) HandleCallTool(ctx context.Context, name string, raw map[string]any) ([]api.Content, error) {
	return d.call(ctx, name, func() (map[string]any, error) { return raw, nil })
}

// HandleCallToolJSON is HandleCallTool for undecoded JSON arguments.
func (d *Dispatcher) HandleCallToolJSON(ctx context.Context, name string, raw json.RawMessage) ([]api.Content, error) {
	return d.call(ctx, name, func() (map[string]any, error) { return api.DecodeArguments(raw) })
}

func (d *Dispatcher) call(ctx context.Context, name string, decode func() (map[string]any, error)) (content []api.Content, err error) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "tools/call "+name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("mcp.tool.name", name)),
	)

	// The metric label for unknown tools is fixed so that client input
	// cannot create new series.
	label := name

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool handler panicked", "tool", name, "panic", rec)
			content = nil
			err = fmt.Errorf("internal error: tool %q panicked", name)
		}

		status := statusOf(err)
		if status == "unknown_tool" {
			label = "unknown"
		}
		elapsed := time.Since(start)
		observability.ToolCallsTotal.WithLabelValues(label, status).Inc()
		observability.ToolCallDuration.WithLabelValues(label).Observe(elapsed.Seconds())

		span.SetAttributes(attribute.String("mcp.tool.status", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logCallError(name, status, elapsed, err)
		} else {
			span.SetStatus(codes.Ok, "")
			slog.Info("tool call", "tool", name, "status", status,
				"duration_ms", elapsed.Milliseconds(), "items", len(content))
		}
		span.End()
	}()

	desc, err := d.registry.Get(name)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("internal error: no handler bound for tool %q", name)
	}

	raw, err := decode()
	if err != nil {
		return nil, err
	}
	args, err := api.Validate(desc.Schema, raw)
	if err != nil {
		return nil, err
	}
	debug.Log("dispatch", "arguments validated", "tool", name, "fields", len(args))

	content, err = h(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, ErrEmptyResult
	}
	return content, nil
}

// statusOf classifies a call outcome for metrics and logs.
func statusOf(err error) string {
	var (
		unknown  *api.UnknownToolError
		invalid  *api.SchemaValidationError
		provider *api.ExecutionProviderError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &unknown):
		return "unknown_tool"
	case errors.As(err, &invalid):
		return "invalid_arguments"
	case errors.As(err, &provider):
		return "provider_error"
	default:
		return "error"
	}
}

func logCallError(name, status string, elapsed time.Duration, err error) {
	attrs := []any{"tool", name, "status", status, "duration_ms", elapsed.Milliseconds(), "error", err.Error()}
	switch status {
	case "unknown_tool", "invalid_arguments":
		// Client mistakes.
		slog.Info("tool call rejected", attrs...)
	case "provider_error":
		slog.Warn("tool call failed", attrs...)
	default:
		slog.Error("tool call failed", attrs...)
	}
}
