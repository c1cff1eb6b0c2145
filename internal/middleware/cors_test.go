package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"adyen-session-proxy/internal/config"
	"adyen-session-proxy/internal/metrics"
)

func testMatcher() *OriginMatcher {
	return NewOriginMatcher(&config.Config{
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", " https://acme.github.io", "https://shop.example.com"},
			HostedDomains:  []string{"github.io"},
		},
	})
}

func TestOriginMatcher_Allowed(t *testing.T) {
	m := testMatcher()

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin", "", true},
		{"exact match", "http://localhost:3000", true},
		{"exact match after trim", "https://acme.github.io", true},
		{"hosted prefix match", "https://acme.github.io.evil.example", true},
		{"non-hosted prefix rejected", "https://shop.example.com.evil.example", false},
		{"different port", "http://localhost:3001", false},
		{"unknown origin", "https://evil.example.com", false},
		{"scheme mismatch", "http://shop.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Allowed(tt.origin); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func newCORSEcho(logger *slog.Logger, m *metrics.Metrics) (*echo.Echo, *int) {
	calls := 0
	e := echo.New()
	e.Use(CORS(testMatcher(), logger, m))
	e.POST("/api/adyen/sessions", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	})
	return e, &calls
}

func TestCORS_AllowedOrigin(t *testing.T) {
	e, _ := newCORSEcho(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/adyen/sessions", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowCredentials); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, "true")
	}
}

func TestCORS_BlockedOrigin(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	e, calls := newCORSEcho(slog.New(slog.NewTextHandler(&buf, nil)), m)

	req := httptest.NewRequest(http.MethodPost, "/api/adyen/sessions", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if *calls != 0 {
		t.Errorf("handler called %d times for blocked origin, want 0", *calls)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for blocked origin", got)
	}
	if !strings.Contains(buf.String(), "CORS blocked origin") {
		t.Errorf("expected blocked-origin log line, got %q", buf.String())
	}
	if rec.Body.Len() != 0 {
		t.Errorf("blocked origin must not produce a body, got %q", rec.Body.String())
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "adyen_proxy_cors_rejected_total" {
			if v := f.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("cors rejected = %v, want 1", v)
			}
			return
		}
	}
	t.Error("expected adyen_proxy_cors_rejected_total")
}

func TestCORS_NoOriginPassesThrough(t *testing.T) {
	e, calls := newCORSEcho(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/adyen/sessions", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if *calls != 1 {
		t.Errorf("handler called %d times, want 1", *calls)
	}
}

func TestCORS_PreflightAllowed(t *testing.T) {
	e, _ := newCORSEcho(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/adyen/sessions", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://acme.github.io")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "https://acme.github.io" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://acme.github.io")
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowMethods); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST included", got)
	}
}

func TestCORS_PreflightBlocked(t *testing.T) {
	e, _ := newCORSEcho(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/adyen/sessions", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestOriginMatcher_DefaultOrigin(t *testing.T) {
	m := NewOriginMatcher(&config.Config{})

	if !m.Allowed(config.DefaultAllowedOrigin) {
		t.Errorf("Allowed(%q) = false with no allow-list configured", config.DefaultAllowedOrigin)
	}
	if m.Allowed("https://acme.github.io") {
		t.Error("Allowed(https://acme.github.io) = true with no allow-list configured")
	}
}
