// Package telemetry configures OpenTelemetry tracing.
//
// Spans:
//   - cycle.run   one checker cycle (attributes socdash.trigger, socdash.services, socdash.emitted)
//   - service.probe one probe (socdash.service, socdash.kind, socdash.status)
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hamed0406/socdash"

func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider installs an OTLP gRPC exporter. An empty endpoint leaves
// the global noop provider in place. The returned function flushes and stops
// the provider.
func InitTraceProvider(ctx context.Context, endpoint, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("socdash"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func StartCycleSpan(ctx context.Context, trigger string, services int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "cycle.run",
		trace.WithAttributes(
			attribute.String("socdash.trigger", trigger),
			attribute.Int("socdash.services", services),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndCycleSpan records the outcome and ends the span.
func EndCycleSpan(span trace.Span, emitted int, err error) {
	span.SetAttributes(attribute.Int("socdash.emitted", emitted))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func StartProbeSpan(ctx context.Context, service, key, kind string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "service.probe",
		trace.WithAttributes(
			attribute.String("socdash.service", service),
			attribute.String("socdash.key", key),
			attribute.String("socdash.kind", kind),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func EndProbeSpan(span trace.Span, status string) {
	span.SetAttributes(attribute.String("socdash.status", status))
	span.End()
}
