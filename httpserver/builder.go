package httpserver

import (
	"context"
	"net"

	"github.com/circleci/testservers/background"
)

// Builder serves a handler in the background until the returned server is released.
type Builder Config

var _ background.Builder[*HTTPServer] = Builder{}

func (b Builder) CreateServer(ctx context.Context) (*HTTPServer, net.Addr, error) {
	s, err := New(ctx, Config(b))
	if err != nil {
		return nil, nil, err
	}
	return s, s.listener.Addr(), nil
}

func (b Builder) StartServer(ctx context.Context, s *HTTPServer, shutdown <-chan struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()
	return s.Serve(ctx)
}

// ServeInBackground is shorthand for background.Serve with a Builder.
func ServeInBackground(ctx context.Context, cfg Config) (*background.Server, error) {
	return background.Serve[*HTTPServer](ctx, Builder(cfg))
}
