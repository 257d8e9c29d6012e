package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrDataset      = "dataset.root"
	AttrDatasetType  = "dataset.type"
	AttrRunID        = "index.run_id"
	AttrFileCount    = "index.files"
	AttrUnmatched    = "index.unmatched"
	AttrCacheHits    = "cache.hits"
	AttrCacheMisses  = "cache.misses"
	AttrQueryNS      = "query.namespace"
	AttrQueryName    = "query.name"
	AttrMatchCount   = "query.matches"
	AttrSubject      = "bids.subject"
	AttrSession      = "bids.session"
	AttrAtlas        = "atlas.name"
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanIndex        = "index.run"
	SpanIndexWalk    = "index.walk"
	SpanIndexStore   = "index.store"
	SpanCollect      = "collect.derivatives"
	SpanCollectQuery = "collect.query"
	SpanAtlases      = "collect.atlases"
)

// Event names.
const (
	EventUnmatchedFile = "file.unmatched"
	EventMultipleMatch = "query.multiple_matches"
)

// Start opens an internal span named name on tracer. A nil tracer records
// nothing.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records the outcome of the operation on span and ends it.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
