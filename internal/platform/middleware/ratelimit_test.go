package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestClientLimiterExhaustsBurst(t *testing.T) {
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 3})
	for i := 0; i < 3; i++ {
		if !l.take() {
			t.Fatalf("request %d should be within burst", i+1)
		}
	}
	if l.take() {
		t.Error("request past burst should be rejected")
	}
}

func TestRateLimitRejectsWith429(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	if err := handler(c); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	err := handler(c)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on rejection")
	}
}

func TestRateLimitIsPerClientIP(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	if err := handler(e.NewContext(req1, httptest.NewRecorder())); err != nil {
		t.Fatalf("first client should pass: %v", err)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	if err := handler(e.NewContext(req2, httptest.NewRecorder())); err != nil {
		t.Fatalf("second client has its own bucket: %v", err)
	}
}
