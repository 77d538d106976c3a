package apm

import (
	"context"
	"io"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/logger"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
		ok   bool
	}{
		{"zipkin", ZipkinProvider, true},
		{" OTLP-GRPC ", OTLPGRPCProvider, true},
		{"otlp-http", OTLPHTTPProvider, true},
		{"stdout", StdoutProvider, true},
		{"", EmptyProvider, true},
		{"none", EmptyProvider, true},
		{"jaeger", EmptyProvider, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseProvider(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseProvider(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNewTraceProvider(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	tests := []struct {
		exporter string
		want     Provider
	}{
		{"none", EmptyProvider},
		{"unknown", EmptyProvider},
		{"stdout", StdoutProvider},
	}

	for _, tt := range tests {
		t.Run(tt.exporter, func(t *testing.T) {
			tp, err := NewTraceProvider(context.Background(), config.TelemetryConfig{
				ServiceName:   "test",
				TraceExporter: tt.exporter,
			}, log)
			if err != nil {
				t.Fatalf("NewTraceProvider: %v", err)
			}
			if tp.Name() != tt.want {
				t.Errorf("Name() = %s, want %s", tp.Name(), tt.want)
			}
			if err := tp.Stop(); err != nil {
				t.Errorf("Stop: %v", err)
			}
		})
	}
}
