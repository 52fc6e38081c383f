// Package testcontext provides a context with o11y wired in, so tests get readable logs
// of everything the harness does.
package testcontext

import (
	"context"
	"time"

	"github.com/circleci/testservers/config/o11y"
)

// ctx is initialised once at package load, every test shares the same provider
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, err := o11y.Setup(context.Background(), o11y.Config{
		Service:    "test-service",
		Version:    "dev",
		Mode:       "test",
		BatchDelay: 100 * time.Millisecond,
	})
	if err != nil {
		return context.Background()
	}
	return cx
}
