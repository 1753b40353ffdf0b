package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

/*
LEARNING: WHAT A COLLABORATION TRACE LOOKS LIKE

Two kinds of root spans reach Jaeger from this server:

  HTTP GET /api/documents/{id}          (middleware.TracingMiddleware)
  WebSocket.ProcessMessage              (one per frame a client sends)
    └── SessionManager.Join             (room lookup, store load)
          └── event "initial content sent"

Store writes happen later on a persistence worker, so a slow database shows
up as a growing pending_writes in /api/health rather than as a slow frame.

Tracing is optional. With TRACING_ENABLED=false (or a collector that can't be
reached) main falls back to Noop and otel's global no-op provider, and every
StartSpan call in the code stays valid.
*/

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(context.Context) error

// Noop is returned when tracing is disabled or could not start
func Noop(context.Context) error { return nil }

// InitJaeger installs a global tracer provider that exports to a Jaeger collector.
// The returned ShutdownFunc flushes buffered spans.
func InitJaeger(serviceName, serviceVersion, collectorEndpoint string) (ShutdownFunc, error) {
	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(collectorEndpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	// Learning: NewSchemaless merges with resource.Default() even when the SDK
	// was built against a different semconv schema version
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Sample everything unless an incoming parent span decided otherwise
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	log.Printf("✓ Jaeger tracing initialized for %s %s: %s", serviceName, serviceVersion, collectorEndpoint)

	return tp.Shutdown, nil
}
