package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/apperror"
)

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(3, time.Minute, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("fourth request in the window should be rejected")
	}
	if !l.allow("10.0.0.2") {
		t.Error("other IPs have their own budget")
	}

	now = now.Add(time.Minute)
	if !l.allow("10.0.0.1") {
		t.Error("a new window should reset the count")
	}
}

func TestRateLimiter_SweepsStaleEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(1, time.Second, func() time.Time { return now })

	l.allow("a")
	l.allow("b")
	now = now.Add(5 * time.Second)
	l.allow("c")

	if len(l.entries) != 1 {
		t.Errorf("expected stale entries to be swept, have %d", len(l.entries))
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mw := rateLimit(newRateLimiter(1, 30*time.Second, func() time.Time { return now }))

	c, _ := newContext(http.MethodPost, "/auth/login")
	if err := mw(ok)(c); err != nil {
		t.Fatalf("first request: %v", err)
	}

	c, rec := newContext(http.MethodPost, "/auth/login")
	err := mw(ok)(c)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusTooManyRequests || appErr.Type != TypeRateLimited {
		t.Fatalf("expected 429 rate_limited, got %v", err)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("expected Retry-After 30, got %q", got)
	}
}

func TestResponseStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no error", nil, http.StatusOK},
		{"app error", apperror.NewForbidden("no"), http.StatusForbidden},
		{"wrapped app error", errors.Join(errors.New("ctx"), apperror.NewNotFound("x")), http.StatusNotFound},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, "/")
			if tt.err == nil {
				_ = c.NoContent(http.StatusOK)
			}
			if got := ResponseStatus(c, tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	if err := RequestID()(ok)(c); err != nil {
		t.Fatal(err)
	}
	if len(rec.Header().Get(HeaderRequestID)) != 36 {
		t.Errorf("expected generated uuid, got %q", rec.Header().Get(HeaderRequestID))
	}

	c, rec = newContext(http.MethodGet, "/")
	c.Request().Header.Set(HeaderRequestID, "abc-123")
	_ = RequestID()(ok)(c)
	if got := rec.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("expected caller's id to be kept, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/")
	err := Recovery()(func(echo.Context) error { panic("kaboom") })(c)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal AppError, got %v", err)
	}
	if appErr.Message == "kaboom" {
		t.Error("panic value must not reach the client message")
	}
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	_ = SecurityHeaders()(ok)(c)

	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options", "Cache-Control"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestCORS(t *testing.T) {
	mw := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})

	c, rec := newContext(http.MethodOptions, "/auth/login")
	c.Request().Header.Set(echo.HeaderOrigin, "https://app.example.com")
	c.Request().Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	if err := mw(ok)(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "https://app.example.com" {
		t.Error("preflight: missing allow-origin")
	}
	if rec.Header().Get(echo.HeaderAccessControlAllowCredentials) != "" {
		t.Error("credentials must not be allowed")
	}

	c, rec = newContext(http.MethodGet, "/user/profile")
	c.Request().Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	_ = mw(ok)(c)
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Error("unlisted origin must not get CORS headers")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("request should still be served, got %d", rec.Code)
	}
}

func TestIPExtractor(t *testing.T) {
	extract := buildIPExtractor([]string{"10.0.0.0/8", "not-a-cidr"})

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"untrusted peer ignores headers", "203.0.113.5:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.5"},
		{"trusted peer x-real-ip", "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted peer xff leftmost", "10.1.2.3:4000", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.9.9.9"}, "5.6.7.8"},
		{"trusted peer no headers", "10.1.2.3:4000", nil, "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := extract(req); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
