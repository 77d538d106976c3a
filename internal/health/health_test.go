package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/logger"
)

func newTestServer(checks map[string]CheckFunc) *Server {
	s := NewServer(0, "v1.2.3", logger.New(io.Discard, logger.LevelError, "test", nil))
	for name, c := range checks {
		s.RegisterCheck(name, c)
	}
	return s
}

func ok(context.Context) (bool, string)   { return true, "" }
func down(context.Context) (bool, string) { return false, "no blocks for 2m" }

func TestServer_Endpoints(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		path       string
		wantStatus int
	}{
		{"live always ok", map[string]CheckFunc{"ethereum": down}, "/live", http.StatusOK},
		{"ready when healthy", map[string]CheckFunc{"ethereum": ok}, "/ready", http.StatusOK},
		{"not ready when a check fails", map[string]CheckFunc{"ethereum": ok, "pricing": down}, "/ready", http.StatusServiceUnavailable},
		{"health ok without checks", nil, "/health", http.StatusOK},
		{"health degraded", map[string]CheckFunc{"ethereum": down}, "/health", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.checks)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("%s status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestServer_HealthBody(t *testing.T) {
	s := newTestServer(map[string]CheckFunc{"ethereum": ok, "pricing": down})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "degraded" || got.Version != "v1.2.3" {
		t.Errorf("status = %+v", got)
	}
	if c := got.Checks["pricing"]; c.Healthy || c.Message != "no blocks for 2m" {
		t.Errorf("pricing check = %+v", c)
	}
	if !got.Checks["ethereum"].Healthy {
		t.Error("ethereum check should be healthy")
	}
}
