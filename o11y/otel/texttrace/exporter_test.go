package texttrace

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestExporter(t *testing.T) {
	buf := &bytes.Buffer{}
	e := New(buf, WithoutColour(), WithoutTimestamps())

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(e))
	_, span := tp.Tracer("test").Start(context.Background(), "a span")
	span.SetAttributes(
		attribute.String("b", "2"),
		attribute.String("a", "1"),
		attribute.String("meta.type", "hidden"),
	)
	span.End()

	assert.Assert(t, tp.Shutdown(context.Background()))

	line := buf.String()
	assert.Check(t, cmp.Contains(line, " a span a=1 b=2\n"))
	assert.Check(t, !bytes.Contains(buf.Bytes(), []byte("meta.type")))
}

func TestExporter_Stopped(t *testing.T) {
	buf := &bytes.Buffer{}
	e := New(buf)
	assert.Assert(t, e.Shutdown(context.Background()))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(e))
	_, span := tp.Tracer("test").Start(context.Background(), "ignored")
	span.End()

	assert.Check(t, cmp.Equal(buf.Len(), 0))
}
