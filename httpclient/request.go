package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	JSON = "application/json; charset=utf-8"
	Text = "text/plain; charset=utf-8"
)

type Request struct {
	Method string
	// Route names the call in spans, and is the path unless NewRequest filled it in.
	Route string
	Query url.Values
	// Header is sent as is, after the content type.
	Header http.Header

	// Body is sent as is, with ContentType which defaults to Text.
	Body        []byte
	ContentType string
	// JSON, if Body is nil, is encoded as the body.
	JSON interface{}

	// Decoder reads the body of a 2XX response.
	Decoder Decoder
	// AttemptTimeout bounds each attempt. Zero means 2 seconds.
	AttemptTimeout time.Duration
	// NoPropagation leaves the trace context off the request.
	NoPropagation bool

	path string
}

// NewRequest builds the path by formatting route with params, while spans keep the
// unformatted route.
func NewRequest(method, route string, params ...interface{}) Request {
	return Request{
		Method: method,
		Route:  route,
		path:   fmt.Sprintf(route, params...),
	}
}

func (r Request) url(base string) (*url.URL, error) {
	p := r.path
	if p == "" {
		p = r.Route
	}
	u, err := url.Parse(base + p)
	if err != nil {
		return nil, err
	}
	if r.Query != nil {
		u.RawQuery = r.Query.Encode()
	}
	return u, nil
}

// build makes a fresh request, so every attempt sends the whole body.
func (r Request) build(ctx context.Context, u *url.URL) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case r.Body != nil:
		body = bytes.NewReader(r.Body)
		contentType = r.ContentType
		if contentType == "" {
			contentType = Text
		}
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = JSON
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.Header {
		req.Header[k] = v
	}
	return req, nil
}

type Decoder func(r io.Reader) error

// JSONDecoder decodes the body into v.
func JSONDecoder(v interface{}) Decoder {
	return func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(v); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		return nil
	}
}

func StringDecoder(s *string) Decoder {
	return func(r io.Reader) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*s = string(b)
		return nil
	}
}
