// Package httpclient calls the services a test has started. Calls are traced with o11y
// and carry the caller's trace context, so a test's spans and the spans of the services
// it calls share one trace. Connection failures and 5XX responses are retried, which
// also covers a service that is still finishing its startup.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/testservers/o11y"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultAttemptTimeout = 2 * time.Second
)

type Config struct {
	// Name identifies the service being called in spans.
	Name string
	// BaseURL is the service root, such as runner.Process.URL.
	BaseURL string
	// Timeout bounds a call including its retries. Zero means 10 seconds.
	Timeout time.Duration
}

type Client struct {
	name    string
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// Call sends r, retrying until it gets a response other than a 5XX or the client
// timeout passes. Every attempt is its own client span. Any status of 300 or above is
// returned as a *StatusError, and the Decoder only sees 2XX responses with content.
func (c *Client) Call(ctx context.Context, r Request) (err error) {
	u, err := r.url(c.baseURL)
	if err != nil {
		return err
	}

	attempts := 0
	try := func() error {
		attempts++
		return c.attempt(ctx, r, u, attempts)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = c.timeout
	return backoff.Retry(try, backoff.WithContext(bo, ctx))
}

func (c *Client) attempt(ctx context.Context, r Request, u *url.URL, n int) (err error) {
	ctx, span := o11y.StartSpan(ctx, fmt.Sprintf("httpclient: %s %s", c.name, r.Route),
		o11y.WithSpanKind(o11y.SpanKindClient))
	defer o11y.End(span, &err)

	timeout := r.AttemptTimeout
	if timeout == 0 {
		timeout = defaultAttemptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := r.build(ctx, u)
	if err != nil {
		return backoff.Permanent(err)
	}
	if !r.NoPropagation {
		for k, v := range o11y.FromContext(ctx).Helpers().ExtractPropagation(ctx).Headers {
			req.Header[k] = v
		}
	}

	span.AddRawField("meta.type", "http_client")
	span.AddRawField("http.client_name", c.name)
	span.AddRawField("http.route", r.Route)
	span.AddRawField("http.method", req.Method)
	span.AddRawField("http.url", u.String())
	span.AddRawField("http.attempt", n)

	res, err := c.http.Do(req)
	if err != nil {
		// url errors repeat the method and url
		ue := &url.Error{}
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("%s %s: %w (attempt %d)", req.Method, r.Route, err, n)
	}
	defer func() {
		// drained so the connection can be reused
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()
	span.AddRawField("http.status_code", res.StatusCode)

	switch {
	case res.StatusCode >= 500:
		return &StatusError{Method: req.Method, Route: r.Route, Code: res.StatusCode, Attempts: n}
	case res.StatusCode >= 300:
		return backoff.Permanent(&StatusError{Method: req.Method, Route: r.Route, Code: res.StatusCode, Attempts: n})
	case res.StatusCode == http.StatusNoContent || r.Decoder == nil:
		return nil
	}

	err = r.Decoder(res.Body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s %s: decoding: %w", req.Method, r.Route, err))
	}
	return nil
}
