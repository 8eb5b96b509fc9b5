package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartWorkflowSpan(t *testing.T) {
	// Arrange
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	// Act
	_, span := StartWorkflowSpan(context.Background(), tracer, "process", "payment", "pay-1")
	span.End()

	// Assert
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "payment.process", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("payment_id", "pay-1"))
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "orders-service", "localhost:4318", false)

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestCounter(t *testing.T) {
	counter := Counter("test", "things_total", "things")

	assert.NotNil(t, counter)
	Inc(context.Background(), counter, "ok")
}
