package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer wires a stdout-exporting tracer provider as the campaign's
// global tracer, matching lcalzada-xor-wmap's local-development tracing
// setup (pretty-printed JSON spans, W3C trace-context propagation).
// The returned shutdown func must be called once the campaign finishes.
func InitTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "coast"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the campaign's named tracer, one span per injection
// iteration as spec.md §4.F's InjectFault→GetOutput/Timeout cycle.
func Tracer() trace.Tracer {
	return otel.Tracer("coast/campaign")
}
