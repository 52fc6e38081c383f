package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/testservers/o11y"
)

type HTTPServer struct {
	name            string
	listener        net.Listener
	server          *http.Server
	shutdownTimeout time.Duration
	serving         atomic.Bool
}

type Config struct {
	// Name is the name of the server in o11y
	Name string
	// Addr is the address to listen on
	Addr string
	// Handler is the  HTTP handler to delegate requests to.
	Handler http.Handler

	// Optional
	// Network must be "tcp", "tcp4", "tcp6", "unix", "unixpacket" or "" (which defaults to tcp).
	Network string
	// ShutdownTimeout bounds how long in flight requests get once shutdown starts. Defaults to 10s.
	ShutdownTimeout time.Duration
}

func New(ctx context.Context, cfg Config) (s *HTTPServer, err error) {
	_, span := o11y.StartSpan(ctx, "server: new-server "+cfg.Name)
	defer o11y.End(span, &err)
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	span.AddField("server_name", cfg.Name)
	span.AddField("network", cfg.Network)

	ln, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}

	span.AddField("address", ln.Addr().String())

	// requests keep the o11y provider but are not canceled with the caller's context
	baseCtx := context.WithoutCancel(ctx)
	return &HTTPServer{
		name:            cfg.Name,
		listener:        ln,
		shutdownTimeout: cfg.ShutdownTimeout,
		server: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       55 * time.Second,
			WriteTimeout:      55 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return baseCtx
			},
		},
	}, nil
}

// Serve the http server. On context cancellation the server is shutdown giving some time
// for the in flight requests to be handled.
func (s *HTTPServer) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(cctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.serving.Store(true)
		defer s.serving.Store(false)
		err := s.server.Serve(s.listener)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func (s *HTTPServer) Name() string {
	return s.name
}

func (s *HTTPServer) Addr() string {
	return s.listener.Addr().String()
}

var errNotServing = errors.New("not serving")

// HealthChecks reports the server ready while it is serving.
func (s *HTTPServer) HealthChecks() (string, func(context.Context) error, func(context.Context) error) {
	return "server-" + s.name, func(context.Context) error {
		if !s.serving.Load() {
			return errNotServing
		}
		return nil
	}, nil
}
