package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/logger"
)

func TestNewMetricProvider_DefaultsToPrometheus(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMetricProvider(ctx, WithServiceName("test"))
	if err != nil {
		t.Fatalf("NewMetricProvider: %v", err)
	}
	defer mp.Shutdown(ctx)

	counter, err := mp.Meter("metrics_test").Int64Counter("test_events_total")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(ctx, 3)

	srv := NewPrometheusServer(0, logger.New(io.Discard, logger.LevelError, "test", nil))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_events_total") {
		t.Errorf("scrape output missing counter:\n%s", rec.Body.String())
	}
}
