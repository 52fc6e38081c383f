package httprecorder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
)

type Request struct {
	Method string
	URL    url.URL
	Header http.Header
	Body   []byte
}

func (r *Request) StringBody() string {
	return string(r.Body)
}

// Decode decodes the JSON from the request into the supplied pointer
func (r *Request) Decode(x interface{}) error {
	return json.Unmarshal(r.Body, x)
}

// TraceParent is the W3C trace context the request carried, or empty.
func (r *Request) TraceParent() string {
	return r.Header.Get("traceparent")
}

type RequestRecorder struct {
	mu       sync.RWMutex
	requests []Request
	// recorded is closed and replaced on every Record
	recorded chan struct{}
}

func New() *RequestRecorder {
	return &RequestRecorder{
		recorded: make(chan struct{}),
	}
}

// Record stores a copy of the incoming request ensuring the body can still
// be consumed by the caller
func (r *RequestRecorder) Record(request *http.Request) (err error) {
	req := Request{
		Method: request.Method,
		URL:    *request.URL,
		Header: request.Header.Clone(),
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	req.Body, err = io.ReadAll(request.Body)
	if err != nil {
		return err
	}
	request.Body = io.NopCloser(bytes.NewReader(req.Body))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	close(r.recorded)
	r.recorded = make(chan struct{})

	return nil
}

// Wait blocks until at least n requests have been recorded, or ctx is done.
func (r *RequestRecorder) Wait(ctx context.Context, n int) error {
	for {
		r.mu.RLock()
		count := len(r.requests)
		recorded := r.recorded
		r.mu.RUnlock()

		if count >= n {
			return nil
		}
		select {
		case <-recorded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *RequestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

func (r *RequestRecorder) AllRequests() []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	requests := make([]Request, len(r.requests))
	copy(requests, r.requests)
	return requests
}

func (r *RequestRecorder) LastRequest() *Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.requests) == 0 {
		return nil
	}
	req := r.requests[len(r.requests)-1]
	return &req
}

func (r *RequestRecorder) FindRequests(method string, u url.URL) []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var requests []Request
	for _, req := range r.requests {
		if req.Method == method && req.URL == u {
			requests = append(requests, req)
		}
	}
	return requests
}
