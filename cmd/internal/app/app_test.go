package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"HUDDLE_HTTP_ADDR", "HUDDLE_LOG_LEVEL", "HUDDLE_DATABASE_URL",
		"HUDDLE_IDENTITY_MODE", "HUDDLE_ROOM_TTL", "HUDDLE_JOIN_KEY_BYTES",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel=%q", cfg.LogLevel)
	}
	if cfg.IdentityMode != IdentityModeTrusted {
		t.Fatalf("IdentityMode=%q", cfg.IdentityMode)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("ReadHeaderTimeout=%v", cfg.ReadHeaderTimeout)
	}
	if cfg.RoomTTL != 0 || cfg.JoinKeyBytes != 0 {
		t.Fatalf("RoomTTL=%v JoinKeyBytes=%d; want zero (service defaults)", cfg.RoomTTL, cfg.JoinKeyBytes)
	}
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	t.Setenv("HUDDLE_JWT_SECRET", "")
	t.Setenv("HUDDLE_UPLOAD_SECRET", "")

	if _, err := New(LoadConfig(), testLogger()); err == nil {
		t.Fatal("New succeeded without a signing secret")
	}
}

func TestNew_WiresInMemoryRuntime(t *testing.T) {
	t.Setenv("HUDDLE_JWT_SECRET", "test-secret-not-for-production")
	t.Setenv("HUDDLE_DATABASE_URL", "")

	a, err := New(LoadConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.dbEnabled || a.dbPool != nil {
		t.Fatal("in-memory mode should not enable the database")
	}
	if a.api == nil || a.gateway == nil || a.metrics == nil {
		t.Fatal("incomplete wiring")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Setenv("HUDDLE_JWT_SECRET", "test-secret-not-for-production")

	a, err := New(LoadConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.api, a.gateway, a.metrics)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	// The in-flight gauge always exports a sample, even before any request
	// passes through the middleware.
	if !strings.Contains(rec.Body.String(), "huddle_http_requests_in_flight") {
		t.Fatalf("metrics exposition missing huddle_http families: %s", rec.Body.String())
	}
}

func TestReadyz_RequiresDBWhenConfigured(t *testing.T) {
	t.Setenv("HUDDLE_JWT_SECRET", "test-secret-not-for-production")

	a, err := New(LoadConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := a.cfg
	cfg.ReadinessRequireDB = true

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, cfg, nil, false, a.api, a.gateway, a.metrics)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db: %d", rec.Code)
	}
}
