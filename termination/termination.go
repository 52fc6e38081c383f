// Package termination turns SIGINT and SIGTERM into an error that ends a service's run loop.
package termination

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var ErrTerminated = errors.New("terminated")

// Handle blocks until the process receives SIGINT or SIGTERM, in which case it waits
// for delay and returns ErrTerminated, or until ctx is done, in which case it returns nil.
func Handle(ctx context.Context, delay time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
		return nil
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
	return ErrTerminated
}
