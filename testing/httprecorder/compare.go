package httprecorder

import (
	"net/http"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// traceHeaders are added by trace propagation, so they differ on every request.
var traceHeaders = []string{"Traceparent", "Tracestate", "Baggage"}

// IgnoreHeaders compares recorded headers without the named ones.
func IgnoreHeaders(headers ...string) gocmp.Option {
	names := canonical(headers)
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return names[http.CanonicalHeaderKey(h)]
	})
}

// OnlyHeaders compares recorded headers by the named ones alone.
func OnlyHeaders(headers ...string) gocmp.Option {
	names := canonical(headers)
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return !names[http.CanonicalHeaderKey(h)]
	})
}

// IgnoreTraceHeaders compares recorded headers without the trace context.
func IgnoreTraceHeaders() gocmp.Option {
	return IgnoreHeaders(traceHeaders...)
}

func canonical(headers []string) map[string]bool {
	names := make(map[string]bool, len(headers))
	for _, h := range headers {
		names[http.CanonicalHeaderKey(h)] = true
	}
	return names
}
