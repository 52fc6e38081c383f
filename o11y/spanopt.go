package o11y

type SpanConfig struct {
	Kind SpanKind
}

type SpanOpt func(*SpanConfig)

// WithSpanKind marks the span as the client or server end of a call.
func WithSpanKind(kind SpanKind) SpanOpt {
	return func(cfg *SpanConfig) {
		cfg.Kind = kind
	}
}

// SpanKind is the role of a span in its trace, numbered as otel numbers them.
type SpanKind int

const (
	SpanKindInternal SpanKind = 1
	SpanKindServer   SpanKind = 2
	SpanKindClient   SpanKind = 3
)
