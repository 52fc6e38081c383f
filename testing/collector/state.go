package collector

import (
	"context"
	"sync"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

// State holds everything the collector has received.
type State struct {
	mu            sync.Mutex
	resourceSpans []*tracepb.ResourceSpans
	// written is closed and replaced on every write
	written chan struct{}
}

func NewState() *State {
	return &State{
		written: make(chan struct{}),
	}
}

func (s *State) write(spans []*tracepb.ResourceSpans) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resourceSpans = append(s.resourceSpans, spans...)
	close(s.written)
	s.written = make(chan struct{})
}

// Read returns a copy of all the resource spans received so far.
func (s *State) Read() []*tracepb.ResourceSpans {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*tracepb.ResourceSpans, len(s.resourceSpans))
	for i, rs := range s.resourceSpans {
		out[i] = proto.Clone(rs).(*tracepb.ResourceSpans)
	}
	return out
}

// WaitForNextWrite blocks until the collector next receives spans, or ctx is done.
// Writes that happened before the call do not count.
func (s *State) WaitForNextWrite(ctx context.Context) error {
	s.mu.Lock()
	written := s.written
	s.mu.Unlock()

	select {
	case <-written:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Span is a received span, with the name of the service that sent it.
type Span struct {
	Service string
	*tracepb.Span
}

// Spans flattens everything received into one list, in the order it was received.
func (s *State) Spans() []Span {
	var out []Span
	for _, rs := range s.Read() {
		service := stringAttr(rs.GetResource().GetAttributes(), "service.name")
		for _, ss := range rs.GetScopeSpans() {
			for _, sp := range ss.GetSpans() {
				out = append(out, Span{Service: service, Span: sp})
			}
		}
	}
	return out
}

// ServiceNames returns the distinct service names that have sent spans.
func (s *State) ServiceNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, sp := range s.Spans() {
		if !seen[sp.Service] {
			seen[sp.Service] = true
			names = append(names, sp.Service)
		}
	}
	return names
}

func stringAttr(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}
