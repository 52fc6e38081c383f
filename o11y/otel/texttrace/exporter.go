// Package texttrace is a span exporter for otel that writes one line per span, which is
// the log output of the harness and of the services it starts.
package texttrace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/circleci/testservers/colourise"
)

var _ trace.SpanExporter = &Exporter{}

type Option func(*Exporter)

func WithoutTimestamps() Option {
	return func(e *Exporter) { e.timestamps = false }
}

func WithoutColour() Option {
	return func(e *Exporter) { e.colour = false }
}

// New creates an Exporter writing to w.
func New(w io.Writer, opts ...Option) *Exporter {
	e := &Exporter{
		w:          w,
		timestamps: true,
		colour:     true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type Exporter struct {
	timestamps bool
	colour     bool

	mu      sync.Mutex
	w       io.Writer
	stopped bool
}

// ExportSpans writes a line per span. Spans exported after Shutdown are dropped.
func (e *Exporter) ExportSpans(_ context.Context, spans []trace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil
	}

	for _, stub := range tracetest.SpanStubsFromReadOnlySpans(spans) {
		stub := stub
		_, _ = e.w.Write(e.format(&stub))
	}
	return nil
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	return ctx.Err()
}

func (e *Exporter) format(ev *tracetest.SpanStub) []byte {
	buf := new(bytes.Buffer)
	if e.timestamps {
		_, _ = fmt.Fprintf(buf, "%s %.3fms ",
			ev.EndTime.Format("15:04:05"),
			float64(ev.EndTime.Sub(ev.StartTime).Microseconds())/1000,
		)
	}
	_, _ = fmt.Fprintf(buf, "%s %s",
		e.applyColour(formatTraceID(ev.SpanContext.TraceID().String())),
		e.applyColour(ev.Name),
	)

	data := map[string]any{}
	for _, a := range ev.Attributes {
		data[string(a.Key)] = a.Value.Emit()
	}

	for _, k := range sortedKeys(ev.Attributes) {
		if exclude(k) {
			continue
		}
		label := k
		if k == "error" && e.colour {
			label = colourise.ErrorHighlight(k)
		}
		_, _ = fmt.Fprintf(buf, " %s=%v", label, data[k])
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

func exclude(k string) bool {
	if k == "name" {
		return true
	}
	return strings.HasPrefix(k, "meta.")
}

func (e *Exporter) applyColour(value string) string {
	if !e.colour {
		return value
	}
	return colourise.ApplyColour(value)
}

func formatTraceID(raw string) string {
	return raw[len(raw)-5:]
}

func sortedKeys(attrs []attribute.KeyValue) []string {
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}
	sort.Strings(keys)
	return keys
}
