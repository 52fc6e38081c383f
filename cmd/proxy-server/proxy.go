package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"

	"github.com/circleci/testservers/closer"
	"github.com/circleci/testservers/o11y"
)

type proxy struct {
	target *url.URL
	client *http.Client
	// retries is how many times a request is retried when the target can not be reached.
	retries uint64
}

func newProxy(target *url.URL) *proxy {
	return &proxy{
		target:  target,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 3,
	}
}

func (p *proxy) forward(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	res, err := p.send(c.Request.Context(), c.Request.Method, c.Request.URL, c.ContentType(), body)
	if err != nil {
		_ = c.AbortWithError(http.StatusBadGateway, err)
		return
	}
	c.Data(res.status, res.contentType, res.body)
}

func (p *proxy) close(context.Context) error {
	p.client.CloseIdleConnections()
	return nil
}

type response struct {
	status      int
	contentType string
	body        []byte
}

// send forwards the request to the same path and query on the target, carrying the
// trace context so the target's spans join the caller's trace.
func (p *proxy) send(ctx context.Context, method string, in *url.URL, contentType string,
	body []byte) (_ *response, err error) {
	ctx, span := o11y.StartSpan(ctx, "proxy: send", o11y.WithSpanKind(o11y.SpanKindClient))
	defer o11y.End(span, &err)

	u := *p.target
	u.Path = in.Path
	u.RawPath = in.RawPath
	u.RawQuery = in.RawQuery
	span.AddRawField("http.method", method)
	span.AddRawField("http.url", u.String())
	span.AddField("body", string(body))

	headers := o11y.FromContext(ctx).Helpers().ExtractPropagation(ctx).Headers

	var res *response
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header[k] = v
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		res, err = p.do(req)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), p.retries), ctx)
	err = backoff.Retry(attempt, b)
	if err != nil {
		return nil, err
	}
	span.AddRawField("http.status_code", res.status)
	return res, nil
}

func (p *proxy) do(req *http.Request) (_ *response, err error) {
	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer closer.ErrorHandler(res.Body, &err)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("reading response: %w", err))
	}
	return &response{
		status:      res.StatusCode,
		contentType: res.Header.Get("Content-Type"),
		body:        body,
	}, nil
}
