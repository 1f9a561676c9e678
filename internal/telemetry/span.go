package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartInjectionSpan opens the per-iteration span spec.md §4.F's
// InjectFault→GetOutput/Timeout cycle maps onto, tagged with the
// attributes an operator would want to filter a trace view by.
func StartInjectionSpan(ctx context.Context, serial int, section string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "injection_iteration", trace.WithAttributes(
		attribute.Int("coast.serial", serial),
		attribute.String("coast.section", section),
	))
}

// EndInjectionSpan records the iteration's sleep time and cycle count
// as span attributes and closes the span, marking it an error span if
// err is non-nil.
func EndInjectionSpan(span trace.Span, sleepTime float64, cycles uint64, err error) {
	span.SetAttributes(
		attribute.Float64("coast.sleep_time", sleepTime),
		attribute.Int64("coast.cycles", int64(cycles)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
