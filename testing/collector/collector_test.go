package collector

import (
	"context"
	"testing"
	"time"

	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/testservers/grpc"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/otel"
	"github.com/circleci/testservers/testing/testcontext"
)

func TestCollector_Export(t *testing.T) {
	ctx := testcontext.Background()
	state := NewState()

	srv, err := Serve(ctx, state)
	assert.Assert(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.Check(t, srv.Stop(ctx))
	})

	conn, err := grpc.NewClient(grpc.Config{
		Addr:        srv.Addr().String(),
		Services:    []string{"opentelemetry.proto.collector.trace.v1.TraceService"},
		CallTimeout: time.Second,
	})
	assert.Assert(t, err)
	t.Cleanup(func() {
		assert.Check(t, conn.Close())
	})

	written := make(chan error, 1)
	go func() {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		written <- state.WaitForNextWrite(wctx)
	}()
	// give the waiter a chance to start waiting before the write
	time.Sleep(20 * time.Millisecond)

	_, err = collectortracepb.NewTraceServiceClient(conn).Export(ctx, &collectortracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			resourceSpans("echo-server", "POST /echo"),
		},
	})
	assert.Assert(t, err)
	assert.Check(t, <-written)

	assert.Check(t, cmp.Len(state.Read(), 1))
	spans := state.Spans()
	assert.Assert(t, cmp.Len(spans, 1))
	assert.Check(t, cmp.Equal(spans[0].Service, "echo-server"))
	assert.Check(t, cmp.Equal(spans[0].GetName(), "POST /echo"))
	assert.Check(t, cmp.DeepEqual(state.ServiceNames(), []string{"echo-server"}))
}

func TestCollector_ReceivesFromProvider(t *testing.T) {
	ctx := testcontext.Background()
	state := NewState()

	srv, err := Serve(ctx, state)
	assert.Assert(t, err)
	t.Cleanup(srv.Close)

	p, err := otel.New(ctx, otel.Config{
		Service:         "proxy-server",
		Version:         "dev",
		GrpcHostAndPort: srv.URL(),
		BatchDelay:      10 * time.Millisecond,
		DisableText:     true,
	})
	assert.Assert(t, err)

	pctx := o11y.WithProvider(context.Background(), p)
	_, span := o11y.StartSpan(pctx, "proxy: send")
	span.End()
	p.Close(context.Background())

	assert.Check(t, cmp.DeepEqual(state.ServiceNames(), []string{"proxy-server"}))
	spans := state.Spans()
	assert.Assert(t, cmp.Len(spans, 1))
	assert.Check(t, cmp.Equal(spans[0].GetName(), "proxy: send"))
}

func TestState_WaitForNextWrite_IgnoresEarlierWrites(t *testing.T) {
	state := NewState()
	state.write([]*tracepb.ResourceSpans{resourceSpans("a", "b")})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Check(t, cmp.ErrorIs(state.WaitForNextWrite(ctx), context.DeadlineExceeded))
}

func TestState_ReadIsACopy(t *testing.T) {
	state := NewState()
	state.write([]*tracepb.ResourceSpans{resourceSpans("a", "b")})

	read := state.Read()
	read[0].ScopeSpans = nil
	assert.Check(t, cmp.Len(state.Spans(), 1))
}

func resourceSpans(service, name string) *tracepb.ResourceSpans {
	return &tracepb.ResourceSpans{
		Resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{
				{
					Key:   "service.name",
					Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: service}},
				},
			},
		},
		ScopeSpans: []*tracepb.ScopeSpans{
			{
				Spans: []*tracepb.Span{
					{
						TraceId: make([]byte, 16),
						SpanId:  make([]byte, 8),
						Name:    name,
					},
				},
			},
		},
	}
}
