package main

import (
	"context"
	"testing"
	"time"

	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/testservers/grpc"
	"github.com/circleci/testservers/system"
	"github.com/circleci/testservers/testing/kongtest"
	"github.com/circleci/testservers/testing/testcontext"
)

func TestCLI(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := cli{}
		assert.Assert(t, kongtest.Parse(t, &c, nil))
		assert.Check(t, cmp.Equal(c.Port, 50051))
		assert.Check(t, cmp.Equal(c.Addr(c.Port), "[::1]:50051"))
	})

	t.Run("address from the environment", func(t *testing.T) {
		c := cli{}
		assert.Assert(t, kongtest.Parse(t, &c, map[string]string{
			"LISTEN_HOST": "127.0.0.1",
			"PORT":        "4317",
		}))
		assert.Check(t, cmp.Equal(c.Addr(c.Port), "127.0.0.1:4317"))
	})

	t.Run("help", func(t *testing.T) {
		s := kongtest.Help(t, &cli{})
		assert.Check(t, cmp.Contains(s, "($PORT)"))
	})
}

func TestLoadCollector(t *testing.T) {
	ctx := testcontext.Background()
	sys := system.New(ctx)

	srv, err := loadCollector(ctx, sys, "127.0.0.1:0")
	assert.Assert(t, err)

	conn, err := grpc.NewClient(grpc.Config{
		Addr:        srv.Addr().String(),
		Services:    []string{"opentelemetry.proto.collector.trace.v1.TraceService"},
		CallTimeout: time.Second,
	})
	assert.Assert(t, err)
	t.Cleanup(func() {
		assert.Check(t, conn.Close())
	})

	_, err = collectortracepb.NewTraceServiceClient(conn).Export(ctx, &collectortracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{}},
	})
	assert.Assert(t, err)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sys.Cleanup(cctx)

	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop on cleanup")
	}
	assert.Check(t, srv.Err())
}
