package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// StartWorkflowSpan cria um span para uma operação de workflow sobre uma entidade
func StartWorkflowSpan(ctx context.Context, tracer trace.Tracer, operation string, entity string, id string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, entity+"."+operation)

	span.SetAttributes(
		attribute.String("workflow.entity", entity),
		attribute.String("workflow.operation", operation),
		attribute.String(entity+"_id", id),
	)

	return ctx, span
}

// Counter cria um contador no meter global. Em caso de erro devolve um
// contador no-op.
func Counter(meterName string, name string, description string) metric.Int64Counter {
	counter, err := otel.Meter(meterName).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(name)
	}
	return counter
}

// Inc incrementa um contador com o status como atributo
func Inc(ctx context.Context, counter metric.Int64Counter, status string) {
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
