package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestLoggerEmitsRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	handler := Logger(logger)(func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/visits", nil), httptest.NewRecorder())
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	for _, want := range []string{`"level":"info"`, `"method":"GET"`, `"path":"/api/v1/visits"`, `"status":200`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestLoggerLevelsFollowStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	notFound := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "no such visit")
	})
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/visits/x", nil), httptest.NewRecorder())
	if err := notFound(c); err == nil {
		t.Fatal("expected error to propagate")
	}
	if line := buf.String(); !strings.Contains(line, `"level":"warn"`) || !strings.Contains(line, `"status":404`) {
		t.Errorf("expected warn at 404, got: %s", line)
	}

	buf.Reset()
	fault := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "db down")
	})
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/visits", nil), httptest.NewRecorder())
	if err := fault(c); err == nil {
		t.Fatal("expected error to propagate")
	}
	if line := buf.String(); !strings.Contains(line, `"level":"error"`) {
		t.Errorf("expected error level at 500, got: %s", line)
	}
}
