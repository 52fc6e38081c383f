// Package poll retries a check until it succeeds or a deadline passes.
package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gotest.tools/v3/assert"
)

// ErrGaveUp is wrapped by the error Until returns when the timeout is reached.
var ErrGaveUp = errors.New("gave up waiting")

// Interval is the pause between attempts. Checks are expected to be cheap and local,
// so there is no backoff.
const Interval = 10 * time.Millisecond

type it func() (stop bool, err error)

// AssertIt will periodically call it up to duration. It is a function that returns
// a bool to stop the polling, and a resultant error. This function will assert that
// no error was returned.
func AssertIt(ctx context.Context, t *testing.T, duration time.Duration, it it) {
	t.Helper()
	err := ForIt(ctx, duration, it)
	assert.NilError(t, err)
}

// ForIt will periodically call it up to duration. It is a function that returns
// a bool to stop the polling, and a resultant error.
func ForIt(ctx context.Context, duration time.Duration, it it) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stop, err := it()
		if stop {
			return err
		}
		time.Sleep(time.Millisecond * 50)
	}
}

// Permanent wraps err so that Until stops retrying and returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Until calls check every Interval until it returns nil, returns a Permanent error,
// or timeout elapses. On timeout the error wraps ErrGaveUp and names what was being
// waited for. The context passed to check is canceled at the timeout, so a slow
// check cannot overrun it. If ctx itself ends first, the error wraps both ErrGaveUp and
// the cause.
func Until(parent context.Context, timeout time.Duration, description string, check func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	var last error
	err := backoff.Retry(func() error {
		last = check(ctx)
		return last
	}, backoff.WithContext(backoff.NewConstantBackOff(Interval), ctx))

	var perm *backoff.PermanentError
	switch {
	case err == nil:
		return nil
	case errors.As(last, &perm):
		return fmt.Errorf("%s: %w", description, perm.Err)
	case parent.Err() != nil:
		return fmt.Errorf("%w: %s: %w", ErrGaveUp, description, parent.Err())
	case last != nil && !errors.Is(last, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", ErrGaveUp, description, last)
	default:
		return fmt.Errorf("%w: %s after %s", ErrGaveUp, description, timeout)
	}
}
