package otel

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/circleci/testservers/o11y"
)

type helpers struct {
	propagator propagation.TextMapPropagator
}

// ExtractPropagation pulls propagation information out of the context
func (h helpers) ExtractPropagation(ctx context.Context) o11y.PropagationContext {
	headers := http.Header{}
	h.propagator.Inject(ctx, propagation.HeaderCarrier(headers))
	return o11y.PropagationContext{
		Headers: headers,
	}
}

// InjectPropagation returns a context carrying the remote span described by the
// headers, so the next span started from it joins that trace. Without any propagation
// headers the context is returned unchanged and the next span starts a new trace.
func (h helpers) InjectPropagation(ctx context.Context, pc o11y.PropagationContext) context.Context {
	if pc.Headers == nil {
		return ctx
	}
	return h.propagator.Extract(ctx, propagation.HeaderCarrier(pc.Headers))
}

func (h helpers) TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
