// Package middleware provides HTTP middleware for the user service Echo
// server. Global middleware is registered in internal/app/routes.go; route
// specific middleware (rate limits) is attached through the route tables.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderRequestID carries the per-request correlation ID.
const HeaderRequestID = echo.HeaderXRequestID

// RequestID returns middleware that tags every request with an ID, reusing
// the caller's X-Request-ID when present. The ID is echoed in the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// statusCoder is implemented by *apperror.AppError.
type statusCoder interface {
	StatusCode() int
}

// ResponseStatus returns the status the client will see. When a handler
// returns an error the response has not been written yet, so the status
// comes from the error instead.
func ResponseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// RequestLogger returns middleware that logs every HTTP request with
// structured fields: method, path, status, latency, and remote IP.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			status := ResponseStatus(c, err)

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			}
			if id := c.Response().Header().Get(HeaderRequestID); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			// Query strings are not logged: reset links carry the token there.

			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			slog.LogAttrs(req.Context(), level, "request", attrs...)
			return err
		}
	}
}
