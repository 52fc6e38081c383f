package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/circleci/testservers/closer"
	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/testing/poll"
)

var (
	// ErrGaveUp is wrapped by readiness errors when a gate times out.
	ErrGaveUp = poll.ErrGaveUp
	// ErrProcessExited is wrapped by readiness errors when the process exits before it is ready.
	ErrProcessExited = errors.New("process exited")
)

// freePort finds a loopback port nothing is listening on, by binding port zero and
// releasing it. Another process may take the port before the child binds it.
func freePort() (*net.TCPAddr, error) {
	l, err := net.Listen("tcp", "[::1]:0")
	if err != nil {
		var ipv4Err error
		l, ipv4Err = net.Listen("tcp", "127.0.0.1:0")
		if ipv4Err != nil {
			return nil, fmt.Errorf("no free loopback port: %w", errors.Join(err, ipv4Err))
		}
	}
	addr := l.Addr().(*net.TCPAddr)
	if err := l.Close(); err != nil {
		return nil, err
	}
	return addr, nil
}

// waitForPort waits until a TCP connection to addr succeeds.
func waitForPort(ctx context.Context, p *Process, timeout time.Duration) (err error) {
	ctx, span := o11y.StartSpan(ctx, "runner: wait for port")
	defer o11y.End(span, &err)
	span.AddField("address", p.addr)

	var d net.Dialer
	return poll.Until(ctx, timeout, "opening "+p.addr.String(), func(ctx context.Context) error {
		if exited(p) {
			return poll.Permanent(ErrProcessExited)
		}
		conn, err := d.DialContext(ctx, "tcp", p.addr.String())
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// waitForHealth waits until GET /health answers with a success status.
func waitForHealth(ctx context.Context, p *Process, timeout time.Duration) (err error) {
	ctx, span := o11y.StartSpan(ctx, "runner: wait for health")
	defer o11y.End(span, &err)

	u := p.URL() + "/health"
	span.AddField("url", u)

	client := &http.Client{}
	return poll.Until(ctx, timeout, "health check "+u, func(ctx context.Context) (err error) {
		if exited(p) {
			return poll.Permanent(ErrProcessExited)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return poll.Permanent(err)
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer closer.ErrorHandler(res.Body, &err)
		_, _ = io.Copy(io.Discard, res.Body)

		if res.StatusCode < 200 || res.StatusCode > 299 {
			return fmt.Errorf("got status %d", res.StatusCode)
		}
		return nil
	})
}

func exited(p *Process) bool {
	select {
	case <-p.Exited():
		return true
	default:
		return false
	}
}
