package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/config"
	"github.com/keyxmakerx/userservice/internal/plugins/admin"
	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
	"github.com/keyxmakerx/userservice/internal/plugins/smtp"
	"github.com/keyxmakerx/userservice/internal/token"
	"github.com/keyxmakerx/userservice/internal/tokenstore"
)

// RegisterRoutes wires the plugins against MariaDB and mounts every route.
// This is the single place where routes are aggregated.
func (a *App) RegisterRoutes() {
	a.registerRoutes(auth.NewUserRepository(a.DB), audit.NewAuditRepository(a.DB))
}

// tokenStore returns the backing store for revocations and reset tokens.
func (a *App) tokenStore() tokenstore.Store {
	if a.Config.Auth.TokenStore == config.StoreRedis && a.Redis != nil {
		return tokenstore.NewRedisStore(a.Redis)
	}
	if a.Config.Auth.TokenStore == config.StoreRedis {
		slog.Warn("redis token store requested without a client, using memory")
	}
	return tokenstore.NewMemoryStore()
}

func (a *App) registerRoutes(users auth.UserRepository, auditRepo audit.AuditRepository) {
	e := a.Echo
	cfg := a.Config

	codec := token.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	store := a.tokenStore()
	revocations := tokenstore.NewRevocationStore(store)
	resets := tokenstore.NewResetTokenStore(store, codec, token.ResetTTL)

	auditService := audit.NewAuditService(auditRepo)

	authService := auth.NewAuthService(auth.ServiceDeps{
		Repo:          users,
		Hasher:        auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:        codec,
		Revocations:   revocations,
		Resets:        resets,
		Mailer:        smtp.New(cfg.SMTP),
		Audit:         auditService,
		Metrics:       a.Metrics,
		ResetLinkBase: cfg.Auth.ResetLinkBase,
	})

	gate := auth.NewGate(codec, revocations, users, a.Metrics)
	e.Use(gate.Authenticate())

	// --- Infrastructure ---
	e.GET("/healthz", a.health)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	// --- Plugins ---
	auth.RegisterRoutes(e, gate, auth.NewHandler(authService))
	admin.RegisterRoutes(e, gate,
		admin.NewHandler(admin.NewAdminService(users, auditService)),
		audit.NewHandler(auditService),
	)
}

// health reports whether the database and, when configured, Redis answer.
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			slog.Warn("health check: database unreachable", slog.Any("error", err))
			status["status"], status["database"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			slog.Warn("health check: redis unreachable", slog.Any("error", err))
			status["status"], status["redis"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, status)
}
