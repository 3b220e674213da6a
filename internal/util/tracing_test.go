package util

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := tracer
	tracer = tp.Tracer(ServiceName)
	t.Cleanup(func() {
		tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSessionSpan(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := StartSessionSpan(context.Background(), "BagService.AddItem", "sess-1")
	_, child := StartSpan(ctx, "cart.persist")
	child.End()
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "cart.persist", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	root := spans[1]
	assert.Equal(t, "BagService.AddItem", root.Name())
	assert.Contains(t, root.Attributes(), SessionIDKey.String("sess-1"))
	assert.Equal(t, codes.Unset, root.Status().Code)
}

func TestRecordError(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartSpan(context.Background(), "BagService.PlaceOrder")
	RecordError(span, errors.New("Your bag is empty."))
	span.End()

	_, clean := StartSpan(context.Background(), "BagService.PlaceOrder")
	RecordError(clean, nil)
	clean.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Your bag is empty.", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)

	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Empty(t, spans[1].Events())
}
