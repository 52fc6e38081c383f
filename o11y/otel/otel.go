// Package otel contains an o11y.Provider backed by the OpenTelemetry SDK. Spans are
// always written to a text console, and additionally exported over OTLP gRPC when
// an endpoint is configured.
//
// Nothing is installed globally: the tracer provider and propagator belong to the
// Provider, and Close must be called to flush them.
package otel

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/otel/texttrace"
)

type Config struct {
	Service string
	Version string

	// GrpcHostAndPort is the OTLP collector endpoint. A URL such as
	// "http://[::1]:4317" is also accepted. Leave empty to only write text.
	GrpcHostAndPort string
	// BatchDelay is how long spans are buffered before export. Zero uses the SDK default.
	BatchDelay time.Duration

	// Writer receives the text output, defaults to os.Stdout.
	Writer io.Writer
	// DisableText prevents output to the writer. Ignored if there is no GrpcHostAndPort.
	DisableText bool
	// Test disables timestamps and colour in the text output.
	Test bool

	ResourceAttributes []attribute.KeyValue
}

type Provider struct {
	tracer     trace.Tracer
	tp         *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
}

var _ o11y.Provider = &Provider{}

func New(ctx context.Context, conf Config) (*Provider, error) {
	var exporters []sdktrace.SpanExporter

	if !conf.DisableText || conf.GrpcHostAndPort == "" {
		w := conf.Writer
		if w == nil {
			w = os.Stdout
		}
		var opts []texttrace.Option
		if conf.Test {
			opts = append(opts, texttrace.WithoutTimestamps(), texttrace.WithoutColour())
		}
		exporters = append(exporters, texttrace.New(w, opts...))
	}

	if conf.GrpcHostAndPort != "" {
		grpc, err := newGRPC(ctx, conf.GrpcHostAndPort)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter failed: %w", err)
		}
		exporters = append(exporters, grpc)
	}

	tp := traceProvider(multipleExporter{exporters: exporters}, conf)

	return &Provider{
		tp:         tp,
		tracer:     tp.Tracer("github.com/circleci/testservers"),
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	}, nil
}

func traceProvider(exporter sdktrace.SpanExporter, conf Config) *sdktrace.TracerProvider {
	ra := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(conf.Service),
		semconv.ServiceVersionKey.String(conf.Version),
	}, conf.ResourceAttributes...)

	res := resource.NewWithAttributes(semconv.SchemaURL, ra...)

	var bspOpts []sdktrace.BatchSpanProcessorOption
	if conf.BatchDelay > 0 {
		bspOpts = append(bspOpts, sdktrace.WithBatchTimeout(conf.BatchDelay))
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter, bspOpts...)),
		sdktrace.WithResource(res),
	)
}

func newGRPC(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(hostAndPort(endpoint)),
		otlptracegrpc.WithInsecure(),
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

// hostAndPort strips any scheme from an endpoint URL, the gRPC exporter wants host:port.
func hostAndPort(endpoint string) string {
	if !strings.Contains(endpoint, "://") {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

type spanCtxKey struct{}

func (o *Provider) StartSpan(ctx context.Context, name string, opts ...o11y.SpanOpt) (context.Context, o11y.Span) {
	cfg := o11y.SpanConfig{Kind: o11y.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, s := o.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKind(cfg.Kind)))
	sp := &span{span: s}
	return context.WithValue(ctx, spanCtxKey{}, sp), sp
}

// GetSpan returns the active span in the given context. It will return nil if there is no span available.
func (o *Provider) GetSpan(ctx context.Context) o11y.Span {
	if s, ok := ctx.Value(spanCtxKey{}).(*span); ok {
		return s
	}
	return nil
}

func (o *Provider) AddField(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	trace.SpanFromContext(ctx).SetAttributes(attr("app."+key, val))
}

func (o *Provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := o.StartSpan(ctx, name)
	for _, f := range fields {
		s.AddField(f.Key, f.Value)
	}
	s.End()
}

func (o *Provider) Helpers() o11y.Helpers {
	return helpers{propagator: o.propagator}
}

// Close flushes pending spans and shuts the exporters down.
func (o *Provider) Close(ctx context.Context) {
	_ = o.tp.Shutdown(ctx)
}

type span struct {
	span trace.Span
}

func (s *span) AddField(key string, val interface{}) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val interface{}) {
	mustValidateKey(key)
	if key == "name" {
		if v, ok := val.(string); ok {
			s.span.SetName(v)
		}
	}
	s.span.SetAttributes(attr(key, val))
}

func (s *span) End() {
	s.span.End()
}

func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}

type multipleExporter struct {
	exporters []sdktrace.SpanExporter
}

func (m multipleExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, e := range m.exporters {
		if err := e.ExportSpans(ctx, spans); err != nil {
			return err
		}
	}
	return nil
}

func (m multipleExporter) Shutdown(ctx context.Context) error {
	for _, e := range m.exporters {
		if err := e.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
