// Package telemetry sets up the OpenTelemetry tracer provider that the
// scheduler uses for its per-trigger spans.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config governs how tracing is initialised.
type Config struct {
	Enabled     bool
	ServiceName string
	SampleRatio float64

	// Writer receives the spans. Nil means stdout.
	Writer io.Writer
	Pretty bool
}

// DefaultConfig returns a disabled configuration that samples every trigger
// once enabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "nrmac",
		SampleRatio: 1,
	}
}

// Shutdown flushes and stops a tracer provider.
type Shutdown func(ctx context.Context) error

// Init creates a tracer provider and installs it as the global one. A
// disabled configuration yields a no-op provider.
func Init(ctx context.Context, cfg Config) (trace.TracerProvider, Shutdown, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)

		return tp, func(context.Context) error { return nil }, nil
	}

	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, nil, fmt.Errorf("sample ratio %v is not in [0, 1]",
			cfg.SampleRatio)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	opts := []stdouttrace.Option{
		stdouttrace.WithWriter(w),
		stdouttrace.WithoutTimestamps(),
	}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}

	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(
			sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	return tp, tp.Shutdown, nil
}

// ShutdownWithTimeout calls shutdown with a bounded timeout.
func ShutdownWithTimeout(shutdown Shutdown, timeout time.Duration) error {
	if shutdown == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return shutdown(ctx)
}
