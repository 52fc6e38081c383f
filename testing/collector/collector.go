package collector

import (
	"context"
	"errors"
	"fmt"
	"net"

	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/circleci/testservers/background"
	grpchelpers "github.com/circleci/testservers/grpc"
	"github.com/circleci/testservers/o11y"
)

type traceService struct {
	collectortracepb.UnimplementedTraceServiceServer
	state *State
}

func (t *traceService) Export(ctx context.Context,
	req *collectortracepb.ExportTraceServiceRequest) (*collectortracepb.ExportTraceServiceResponse, error) {

	o11y.AddField(ctx, "resource_spans", len(req.GetResourceSpans()))
	t.state.write(req.GetResourceSpans())
	return &collectortracepb.ExportTraceServiceResponse{}, nil
}

// Server is a bound, not yet serving, collector.
type Server struct {
	grpc     *grpc.Server
	listener net.Listener
}

// Builder creates collectors for background.Serve.
type Builder struct {
	State *State
	// Addr to listen on, defaults to a free port on the IPv6 loopback address, or the
	// IPv4 one where there is no IPv6.
	Addr string
}

var _ background.Builder[*Server] = Builder{}

func (b Builder) CreateServer(ctx context.Context) (*Server, net.Addr, error) {
	addr := b.Addr
	if addr == "" {
		addr = "[::1]:0"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil && b.Addr == "" {
		addr = "127.0.0.1:0"
		lis, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("collector listen on %s: %w", addr, err)
	}

	s := grpc.NewServer(grpc.StatsHandler(grpchelpers.NewServerHandler(ctx)))
	collectortracepb.RegisterTraceServiceServer(s, &traceService{state: b.State})

	return &Server{grpc: s, listener: lis}, lis.Addr(), nil
}

func (b Builder) StartServer(_ context.Context, s *Server, shutdown <-chan struct{}) error {
	g := errgroup.Group{}
	g.Go(func() error {
		err := s.grpc.Serve(s.listener)
		if errors.Is(err, grpc.ErrServerStopped) {
			// shutdown won the race with Serve
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-shutdown
		s.grpc.GracefulStop()
		return nil
	})
	return g.Wait()
}

// Serve starts a collector recording into state, on a free loopback port.
func Serve(ctx context.Context, state *State) (*background.Server, error) {
	return background.Serve[*Server](ctx, Builder{State: state})
}
