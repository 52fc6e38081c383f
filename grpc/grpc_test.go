package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/testservers/internal/syncbuffer"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/otel"
	"github.com/circleci/testservers/testing/poll"
)

func TestNewClient_PropagatesTrace(t *testing.T) {
	buf := &syncbuffer.SyncBuffer{}
	p, err := otel.New(context.Background(), otel.Config{
		Service:    "grpc-test",
		Writer:     buf,
		Test:       true,
		BatchDelay: time.Millisecond,
	})
	assert.Assert(t, err)
	ctx := o11y.WithProvider(context.Background(), p)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Assert(t, err)
	srv := grpc.NewServer(grpc.StatsHandler(NewServerHandler(ctx)))
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := NewClient(Config{
		Addr:        lis.Addr().String(),
		Services:    []string{"grpc.health.v1.Health"},
		CallTimeout: time.Second,
	})
	assert.Assert(t, err)
	t.Cleanup(func() {
		assert.Check(t, conn.Close())
	})

	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(res.Status, healthpb.HealthCheckResponse_SERVING))

	t.Cleanup(func() {
		p.Close(context.Background())
	})

	var traceIDs []string
	poll.AssertIt(ctx, t, 5*time.Second, func() (bool, error) {
		traceIDs = nil
		for _, l := range strings.Split(buf.String(), "\n") {
			if strings.Contains(l, "grpc.health.v1.Health/Check") {
				traceIDs = append(traceIDs, strings.Fields(l)[0])
			}
		}
		return len(traceIDs) == 2, nil
	})
	assert.Check(t, cmp.Equal(traceIDs[0], traceIDs[1]), "client and server spans should share a trace")
	assert.Check(t, cmp.Contains(buf.String(), "rpc.service=grpc.health.v1.Health"))
}

func TestSpanName(t *testing.T) {
	tests := []struct {
		fullMethod string
		wantName   string
		wantFields []o11y.Pair
	}{
		{
			fullMethod: "/opentelemetry.proto.collector.trace.v1.TraceService/Export",
			wantName:   "opentelemetry.proto.collector.trace.v1.TraceService/Export",
			wantFields: []o11y.Pair{
				o11y.Field("rpc.service", "opentelemetry.proto.collector.trace.v1.TraceService"),
				o11y.Field("rpc.method", "Export"),
			},
		},
		{fullMethod: "no-slash", wantName: "no-slash"},
		{fullMethod: "/no-method", wantName: "no-method"},
	}
	for _, tt := range tests {
		t.Run(tt.fullMethod, func(t *testing.T) {
			name, fields := spanName(tt.fullMethod)
			assert.Check(t, cmp.Equal(name, tt.wantName))
			assert.Check(t, cmp.DeepEqual(fields, tt.wantFields))
		})
	}
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unavailable", err: &Error{Err: status.Error(codes.Unavailable, "busy")}, want: true},
		{name: "not found", err: &Error{Err: status.Error(codes.NotFound, "gone")}, want: false},
		{name: "internal", err: &Error{Err: status.Error(codes.Internal, "bug")}, want: false},
		{name: "client deadline", err: &Error{Err: context.DeadlineExceeded}, want: true},
		{name: "server cancelled", err: &Error{Server: true, Err: context.Canceled}, want: false},
		{name: "wrapped", err: errors.Join(errors.New("x"), &Error{Err: status.Error(codes.Aborted, "")}), want: true},
		{name: "not an rpc error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Check(t, cmp.Equal(IsTemporary(tt.err), tt.want))
		})
	}
}

func TestServiceConfig(t *testing.T) {
	var got map[string]interface{}
	assert.Assert(t, json.Unmarshal([]byte(ServiceConfig("a.A", "b.B")), &got))

	mc := got["methodConfig"].([]interface{})[0].(map[string]interface{})
	assert.Check(t, cmp.DeepEqual(mc["name"], []interface{}{
		map[string]interface{}{"service": "a.A"},
		map[string]interface{}{"service": "b.B"},
	}))
	rp := mc["retryPolicy"].(map[string]interface{})
	assert.Check(t, cmp.DeepEqual(rp["retryableStatusCodes"], []interface{}{"UNAVAILABLE"}))
}
