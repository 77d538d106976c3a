// Package apm sets up the global OpenTelemetry tracer provider.
package apm

import (
	"context"
	"fmt"
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

	"github.com/fd1az/flashloan-arb/internal/apperror"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	StdoutProvider   Provider = "stdout"
	EmptyProvider    Provider = "none"
)

// ParseProvider maps a config value to a Provider; unknown values fall back
// to EmptyProvider.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ZipkinProvider, OTLPGRPCProvider, OTLPHTTPProvider, StdoutProvider, EmptyProvider:
		return p, true
	case "":
		return EmptyProvider, true
	}
	return EmptyProvider, false
}

type TraceProvider interface {
	Name() Provider
	Stop() error
}

type emptyProvider struct{}

func (emptyProvider) Name() Provider { return EmptyProvider }
func (emptyProvider) Stop() error    { return nil }

type traceProvider struct {
	name Provider
	tp   *sdktrace.TracerProvider
}

func (o *traceProvider) Name() Provider { return o.name }

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}

func newExporter(ctx context.Context, p Provider, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch p {
	case ZipkinProvider:
		return zipkin.New(cfg.OTLPEndpoint)
	case OTLPGRPCProvider:
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(cfg.OTLPEndpoint),
			otlptracegrpc.WithHeaders(cfg.OTLPHeaders),
		)
	case OTLPHTTPProvider:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
			otlptracehttp.WithHeaders(cfg.OTLPHeaders),
		)
	case StdoutProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return nil, fmt.Errorf("no exporter for provider %q", p)
}

// NewTraceProvider installs the global tracer provider selected by
// cfg.TraceExporter. An empty or "none" exporter installs nothing.
func NewTraceProvider(ctx context.Context, cfg config.TelemetryConfig, log logger.LoggerInterface) (TraceProvider, error) {
	p, ok := ParseProvider(cfg.TraceExporter)
	if !ok {
		log.Warn(ctx, "trace exporter not found, tracing disabled", "exporter", cfg.TraceExporter)
	}
	if p == EmptyProvider {
		return emptyProvider{}, nil
	}

	exp, err := newExporter(ctx, p, cfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContextf("create %s trace exporter", p))
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("otel.provider", string(p)),
		))

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

	log.Info(ctx, "tracing initialized", "provider", string(p), "endpoint", cfg.OTLPEndpoint)

	return &traceProvider{name: p, tp: tp}, nil
}
