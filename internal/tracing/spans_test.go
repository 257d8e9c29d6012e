package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test"), exporter
}

func TestStartFinish_Success(t *testing.T) {
	tracer, exporter := setupTestTracer(t)

	_, span := Start(context.Background(), tracer, SpanCollect, attribute.String(AttrSubject, "01"))
	Finish(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, SpanCollect, spans[0].Name)
	require.Equal(t, codes.Ok, spans[0].Status.Code)
	require.Contains(t, spans[0].Attributes, attribute.String(AttrSubject, "01"))
}

func TestStartFinish_Error(t *testing.T) {
	tracer, exporter := setupTestTracer(t)

	_, span := Start(context.Background(), tracer, SpanIndex)
	Finish(span, errors.New("no dataset_description.json"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status.Code)
	require.Equal(t, "no dataset_description.json", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1, "error recorded as an event")
}

func TestStart_ChildSpan(t *testing.T) {
	tracer, exporter := setupTestTracer(t)

	ctx, parent := Start(context.Background(), tracer, SpanIndex)
	_, child := Start(ctx, tracer, SpanIndexWalk)
	Finish(child, nil)
	Finish(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestStart_NilTracer(t *testing.T) {
	tracer, exporter := setupTestTracer(t)
	ctx, parent := tracer.Start(context.Background(), "parent")

	_, span := Start(ctx, nil, SpanCollectQuery)
	Finish(span, errors.New("ignored"))

	require.Empty(t, exporter.GetSpans(), "the parent span is not ended by a nil-tracer child")
	parent.End()
	require.Len(t, exporter.GetSpans(), 1)
}
