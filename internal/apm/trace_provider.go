// Package apm sets up the process tracer provider.
package apm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fd1az/handshake-client/internal/logger"
)

type Provider string

const (
	ConsoleProvider  Provider = "console"
	ZipkinProvider   Provider = "zipkin"
	OTLPHTTPProvider Provider = "otlp-http"
	OTLPGRPCProvider Provider = "otlp-grpc"
	EmptyProvider    Provider = "empty"
)

// Config selects and configures the span exporter.
type Config struct {
	Provider    Provider
	ServiceName string
	// Endpoint is the collector URL for zipkin and otlp providers.
	Endpoint string
	// Headers is a comma separated key=value list sent by otlp exporters.
	Headers string
	// Writer receives console spans; defaults to stdout.
	Writer io.Writer
}

type TraceProvider interface {
	TracerProvider() trace.TracerProvider
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type emptyProvider struct{}

func (emptyProvider) TracerProvider() trace.TracerProvider { return noop.NewTracerProvider() }
func (emptyProvider) Stop() error                          { return nil }

// NewEmptyTraceProvider returns a provider that records nothing.
func NewEmptyTraceProvider() TraceProvider {
	return emptyProvider{}
}

// NewTraceProvider builds the exporter for cfg.Provider and installs the
// resulting provider and W3C propagators as the otel globals.
func NewTraceProvider(ctx context.Context, cfg Config, log logger.LoggerInterface) (TraceProvider, error) {
	if cfg.Provider == "" || cfg.Provider == EmptyProvider {
		return NewEmptyTraceProvider(), nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("apm: %s exporter: %w", cfg.Provider, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("otel.provider", string(cfg.Provider)),
		))
	if err != nil {
		// Schema URL conflicts with the default resource; keep ours.
		rsrc = resource.NewSchemaless(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("otel.provider", string(cfg.Provider)),
		)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(ctx, "tracing initialized", "provider", string(cfg.Provider), "endpoint", cfg.Endpoint)
	return &traceProvider{tp}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Provider {
	case ConsoleProvider:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case ZipkinProvider:
		return zipkin.New(cfg.Endpoint)
	case OTLPHTTPProvider:
		headers, err := ParseHeaders(cfg.Headers)
		if err != nil {
			return nil, err
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(headers)}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	case OTLPGRPCProvider:
		headers, err := ParseHeaders(cfg.Headers)
		if err != nil {
			return nil, err
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(headers)}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// ParseHeaders parses "k1=v1,k2=v2".
func ParseHeaders(s string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return headers, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

func (o *traceProvider) TracerProvider() trace.TracerProvider {
	return o.tp
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	if err := o.tp.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}
