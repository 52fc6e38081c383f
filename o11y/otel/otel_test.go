package otel

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/testservers/o11y"
)

func newTestProvider(t *testing.T) (*Provider, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	p, err := New(context.Background(), Config{
		Service: "test-service",
		Version: "1.2.3",
		Writer:  buf,
		Test:    true,
	})
	assert.Assert(t, err)
	return p, buf
}

func TestProvider_Log(t *testing.T) {
	p, buf := newTestProvider(t)
	ctx := o11y.WithProvider(context.Background(), p)

	o11y.Log(ctx, "runner: started", o11y.Field("port", 9001), o11y.Field("name", "echo-server"))
	p.Close(ctx)

	out := buf.String()
	assert.Check(t, cmp.Contains(out, "runner: started"))
	assert.Check(t, cmp.Contains(out, "app.port=9001"))
	assert.Check(t, cmp.Contains(out, "app.name=echo-server"))
}

func TestProvider_End(t *testing.T) {
	p, buf := newTestProvider(t)
	ctx := o11y.WithProvider(context.Background(), p)

	func() {
		var err error
		_, span := o11y.StartSpan(ctx, "failing work")
		defer o11y.End(span, &err)
		err = errors.New("it broke")
	}()
	p.Close(ctx)

	line := strings.TrimSpace(buf.String())
	assert.Check(t, cmp.Contains(line, "failing work"))
	assert.Check(t, cmp.Contains(line, "error=it broke"))
	assert.Check(t, cmp.Contains(line, "result=error"))
}

func TestProvider_GetSpan(t *testing.T) {
	p, _ := newTestProvider(t)
	defer p.Close(context.Background())

	ctx := context.Background()
	assert.Check(t, p.GetSpan(ctx) == nil)

	ctx, span := p.StartSpan(ctx, "outer")
	defer span.End()
	assert.Check(t, p.GetSpan(ctx) == span)
}

func TestProvider_BadKeyPanics(t *testing.T) {
	p, _ := newTestProvider(t)
	defer p.Close(context.Background())

	_, span := p.StartSpan(context.Background(), "span")
	defer span.End()
	defer func() {
		assert.Check(t, recover() != nil)
	}()
	span.AddField("bad-key", 1)
}

func TestHelpers_RoundTrip(t *testing.T) {
	p, _ := newTestProvider(t)
	defer p.Close(context.Background())

	ctx, span := p.StartSpan(context.Background(), "client", o11y.WithSpanKind(o11y.SpanKindClient))
	defer span.End()

	pc := p.Helpers().ExtractPropagation(ctx)
	assert.Check(t, pc.Headers.Get("traceparent") != "")

	remote := p.Helpers().InjectPropagation(context.Background(), pc)
	remote, child := p.StartSpan(remote, "server", o11y.WithSpanKind(o11y.SpanKindServer))
	defer child.End()

	traceID := p.Helpers().TraceID(ctx)
	assert.Check(t, traceID != "")
	assert.Check(t, cmp.Equal(p.Helpers().TraceID(remote), traceID))
}

func TestHelpers_NoPropagation(t *testing.T) {
	p, _ := newTestProvider(t)
	defer p.Close(context.Background())

	ctx := p.Helpers().InjectPropagation(context.Background(), o11y.PropagationContext{Headers: http.Header{}})
	assert.Check(t, cmp.Equal(p.Helpers().TraceID(ctx), ""))
}

func TestHostAndPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "localhost:4317", want: "localhost:4317"},
		{in: "http://[::1]:4317", want: "[::1]:4317"},
		{in: "http://127.0.0.1:4317/", want: "127.0.0.1:4317"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Check(t, cmp.Equal(hostAndPort(tt.in), tt.want))
		})
	}
}
