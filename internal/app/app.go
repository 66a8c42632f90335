// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, optional Redis client, Echo
// instance, metrics registry) and wires the plugins together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/config"
	"github.com/keyxmakerx/userservice/internal/metrics"
	"github.com/keyxmakerx/userservice/internal/middleware"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis backs the token store when TOKEN_STORE=redis. Nil otherwise.
	Redis *redis.Client

	Echo    *echo.Echo
	Metrics *metrics.Metrics
}

// New creates a new App and configures Echo with global middleware and the
// JSON error handler.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Echo:    e,
		Metrics: metrics.New(),
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware. Recovery is outermost so it
// catches panics from everything after it. The auth gate is added by
// RegisterRoutes once its dependencies exist.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestID())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(a.Metrics.Middleware())
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: a.Config.CORSOrigins,
	}))
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorHandler maps errors to JSON responses. AppErrors carry their own
// status, type, and message. Echo's router errors keep their status. Anything
// else is an internal error and its detail stays in the log.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	typ := apperror.TypeInternal
	message := "an unexpected error occurred"

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code, typ, message = appErr.Code, appErr.Type, appErr.Message

		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", c.Response().Header().Get(middleware.HeaderRequestID)),
			)
		}

	case errors.As(err, &echoErr):
		code = echoErr.Code
		typ = echoErrorType(code)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}

	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Type:    typ,
		Message: message,
	})
}

// echoErrorType names router-level failures (404, 405, 413...).
func echoErrorType(code int) string {
	switch code {
	case http.StatusNotFound:
		return apperror.TypeNotFound
	case http.StatusUnauthorized:
		return apperror.TypeUnauthorized
	case http.StatusForbidden:
		return apperror.TypeForbidden
	case http.StatusTooManyRequests:
		return middleware.TypeRateLimited
	}
	if code >= 500 {
		return apperror.TypeInternal
	}
	return apperror.TypeBadRequest
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting user service",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("token_store", a.Config.Auth.TokenStore),
	)
	return a.Echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}
