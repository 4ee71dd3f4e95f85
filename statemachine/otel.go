package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// Span names.
const (
	spanInit         = "hfsm.init"
	spanProcessEvent = "hfsm.process_event"
	spanEnter        = "hfsm.enter"
	spanExit         = "hfsm.exit"
)

// startSpan starts a span carrying the machine attributes. Returns a non-recording span
// when tracing is disabled for the engine. The caller is responsible for calling endSpan.
//
//nolint:spancheck // Span lifecycle managed by caller
func (e *Engine[S, C, E]) startSpan(
	ctx context.Context,
	name string,
	state S,
) (context.Context, trace.Span) {
	if !e.opts.tracing {
		return ctx, trace.SpanFromContext(context.Background())
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	span.SetAttributes(
		attribute.String("machine", e.name),
		attribute.String("machine_id", e.id),
		attribute.String("state", stateLabel(state)),
	)

	return ctx, span
}

// endSpan records the outcome and error (if any) and ends the span.
func endSpan(span trace.Span, outcome string, err error) {
	if outcome != "" {
		span.SetAttributes(attribute.String("outcome", outcome))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
