package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Config struct {
	// Addr is the server address, for example "[::1]:4317".
	Addr string
	// Services are retried on UNAVAILABLE, named as in their .proto files.
	Services []string
	// CallTimeout bounds each unary call including its retries. Zero means no bound.
	CallTimeout time.Duration
}

// NewClient returns a plaintext, traced client of a local test server. It connects
// lazily, on the first call.
func NewClient(conf Config) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(NewClientHandler()),
	}
	if len(conf.Services) > 0 {
		opts = append(opts, grpc.WithDefaultServiceConfig(ServiceConfig(conf.Services...)))
	}
	if conf.CallTimeout > 0 {
		opts = append(opts, grpc.WithUnaryInterceptor(callTimeout(conf.CallTimeout)))
	}
	return grpc.NewClient(conf.Addr, opts...)
}

func callTimeout(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
