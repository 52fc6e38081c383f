// Package o11y sets up the o11y provider for a harness binary or test process.
package o11y

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/circleci/testservers/o11y"
	"github.com/circleci/testservers/o11y/otel"
)

type Config struct {
	Service string
	Version string

	// OtelEndpoint is the OTLP gRPC collector to export to. Optional.
	OtelEndpoint string
	// BatchDelay is how long spans are buffered before they are exported.
	BatchDelay time.Duration

	// Optional
	Mode   string
	Writer io.Writer
	Test   bool
}

// CLI holds the standard otel environment, it is meant to be embedded in a kong cli struct.
type CLI struct {
	OtelEndpoint   string `name:"otel-endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" help:"OTLP gRPC endpoint to export spans to"`
	OtelBatchDelay int    `name:"otel-batch-delay" env:"OTEL_BSP_SCHEDULE_DELAY" default:"5000" help:"Delay in milliseconds between span exports"`
}

func (c CLI) Config(service, version string) Config {
	return Config{
		Service:      service,
		Version:      version,
		OtelEndpoint: c.OtelEndpoint,
		BatchDelay:   time.Duration(c.OtelBatchDelay) * time.Millisecond,
	}
}

// Setup creates the provider and returns a context carrying it. The returned cleanup
// flushes and closes the provider, and must be called by the owner; nothing is
// installed process wide.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	var attrs []attribute.KeyValue
	if o.Mode != "" {
		attrs = append(attrs, attribute.String("service.mode", o.Mode))
	}

	p, err := otel.New(ctx, otel.Config{
		Service:            o.Service,
		Version:            o.Version,
		GrpcHostAndPort:    o.OtelEndpoint,
		BatchDelay:         o.BatchDelay,
		Writer:             o.Writer,
		Test:               o.Test,
		ResourceAttributes: attrs,
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("o11y setup failed: %w", err)
	}

	return o11y.WithProvider(ctx, p), p.Close, nil
}
