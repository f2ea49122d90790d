package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for valet spans.
var (
	AttrCallID     = attribute.Key("valet.call.id")
	AttrToolName   = attribute.Key("valet.tool.name")
	AttrToolKind   = attribute.Key("valet.tool.kind")
	AttrMCPService = attribute.Key("valet.mcp.service")
	AttrModel      = attribute.Key("valet.llm.model")
	AttrSessionID  = attribute.Key("valet.session.id")
	AttrErrorKind  = attribute.Key("valet.error.kind")
	AttrAttempt    = attribute.Key("valet.attempt")
)

// StartSpan starts an internal span with the given attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for an outbound call (model API, MCP).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
