package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/library-circulation-go/circulation/oteladapters"
)

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	collector := oteladapters.NewTracingCollector(provider.Tracer("test"))

	ctx, spanCtx := collector.StartSpan(context.Background(), "inventory_ledger.reserve", map[string]string{
		"book_id": "b-1",
	})
	require.NotNil(t, ctx, "StartSpan should return a context")
	require.NotNil(t, spanCtx, "StartSpan should return a span context")

	collector.FinishSpan(spanCtx, "success", map[string]string{"result": "reserved"})

	spans := recorder.Ended()
	require.Len(t, spans, 1, "Exactly one span should have ended")

	span := spans[0]
	assert.Equal(t, "inventory_ledger.reserve", span.Name(), "Span name should match")
	assert.Equal(t, codes.Ok, span.Status().Code, "Success should map to an Ok status")
	assert.Contains(t, span.Attributes(), attribute.String("book_id", "b-1"), "Start attributes should be present")
	assert.Contains(t, span.Attributes(), attribute.String("result", "reserved"), "Finish attributes should be present")
}

func Test_TracingCollector_ErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	collector := oteladapters.NewTracingCollector(provider.Tracer("test"))

	_, spanCtx := collector.StartSpan(context.Background(), "issue_record_store.close", nil)
	collector.FinishSpan(spanCtx, "conflict", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1, "Exactly one span should have ended")

	assert.Equal(t, codes.Error, spans[0].Status().Code, "Conflict should map to an Error status")
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	collector := oteladapters.NewTracingCollector(provider.Tracer("test"))

	_, spanCtx := collector.StartSpan(context.Background(), "circulation.issue", nil)
	spanCtx.AddAttribute("member_id", "m-1")
	collector.FinishSpan(spanCtx, "ok", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1, "Exactly one span should have ended")

	assert.Contains(t, spans[0].Attributes(), attribute.String("member_id", "m-1"), "Attribute should be recorded on the span")
}
