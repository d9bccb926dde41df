package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for all sandbox-mcp spans.
const TracerName = "github.com/rhuss/sandbox-mcp"

// Tracer returns the sandbox-mcp tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// TracingConfig holds OTLP exporter settings.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP traces URL (e.g., http://collector:4318/v1/traces).
	// Empty uses the exporter's environment defaults (OTEL_EXPORTER_OTLP_*).
	Endpoint string

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string
}

// SetupTracing installs a global tracer provider exporting spans over
// OTLP/HTTP. The returned function flushes and shuts the provider down.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "sandbox-mcp"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
