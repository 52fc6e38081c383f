/*
Package background runs in-process servers for the duration of a test.

A server is described by a Builder: CreateServer binds and returns the address,
then StartServer runs the server until the shutdown channel is closed. Serve
drives the two steps and returns as soon as the address is bound, so callers can
connect to Server.Addr immediately.
*/
package background

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/circleci/testservers/latch"
	"github.com/circleci/testservers/o11y"
)

// Builder is implemented by anything that can be served in the background.
type Builder[S any] interface {
	// CreateServer binds the server, but does not start serving.
	CreateServer(ctx context.Context) (S, net.Addr, error)

	// StartServer serves until shutdown is closed and then returns. The shutdown
	// signal is a request to stop, not a failure.
	StartServer(ctx context.Context, server S, shutdown <-chan struct{}) error
}

// Server is a handle on a server running in the background.
type Server struct {
	addr     net.Addr
	shutdown *latch.Latch

	done chan struct{}
	err  error
}

// Serve creates the server and starts it in a new goroutine. If CreateServer fails
// nothing is started and the error is returned. Errors from StartServer are logged
// and reported by Stop.
func Serve[S any](ctx context.Context, b Builder[S]) (_ *Server, err error) {
	ctx, span := o11y.StartSpan(ctx, "background: serve")
	defer o11y.End(span, &err)

	server, addr, err := b.CreateServer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}
	span.AddField("address", addr.String())

	s := &Server{
		addr:     addr,
		shutdown: latch.New(),
		done:     make(chan struct{}),
	}

	// only the latch may stop the server, not the caller's context
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(s.done)
		s.err = run(runCtx, b, server, s.shutdown.Done())
		if s.err != nil {
			o11y.LogError(runCtx, "background: server failed", s.err, o11y.Field("address", addr.String()))
		}
	}()

	return s, nil
}

func run[S any](ctx context.Context, b Builder[S], server S, shutdown <-chan struct{}) (err error) {
	ctx, span := o11y.StartSpan(ctx, "background: run")
	defer o11y.End(span, &err)

	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(span, r)
		}
	}()

	return b.StartServer(ctx, server, shutdown)
}

func (s *Server) Addr() net.Addr {
	return s.addr
}

// URL returns the http URL for the server address.
func (s *Server) URL() string {
	return "http://" + s.addr.String()
}

// Close signals the server to shut down and returns without waiting for it.
func (s *Server) Close() {
	s.shutdown.Unlock()
}

// Stop signals the server to shut down and waits for it to finish, returning any
// error the server failed with.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdown.Unlock()
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for server on %s to stop: %w", s.addr, ctx.Err())
	}
}

// Done is closed once the server has stopped running.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// ErrNotStopped is returned by Err while the server is still running.
var ErrNotStopped = errors.New("server still running")

// Err returns the error the server stopped with, or ErrNotStopped if it is still running.
func (s *Server) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return ErrNotStopped
	}
}
