package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/middleware"
)

// Routes returns the policy table for the auth and self-service endpoints.
//
// Credential endpoints are rate-limited per IP to slow down brute force and
// credential stuffing: 10 per minute for login, 5 for register and
// forgot-password.
func Routes(h *Handler) []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/auth/register", Access: Anonymous, Handler: h.Register,
			Middleware: []echo.MiddlewareFunc{middleware.RateLimit(5, time.Minute)}},
		{Method: http.MethodPost, Path: "/auth/login", Access: Anonymous, Handler: h.Login,
			Middleware: []echo.MiddlewareFunc{middleware.RateLimit(10, time.Minute)}},
		{Method: http.MethodPost, Path: "/auth/forgot-password", Access: Anonymous, Handler: h.ForgotPassword,
			Middleware: []echo.MiddlewareFunc{middleware.RateLimit(5, time.Minute)}},
		{Method: http.MethodPost, Path: "/auth/reset-password", Access: Anonymous, Handler: h.ResetPassword},

		{Method: http.MethodPost, Path: "/auth/logout", Access: Authenticated, Handler: h.Logout},
		{Method: http.MethodGet, Path: "/user/profile", Access: Authenticated, Handler: h.Profile},
		{Method: http.MethodPut, Path: "/user/profile", Access: Authenticated, Handler: h.UpdateProfile},
		{Method: http.MethodPut, Path: "/user/change-password", Access: ActiveAccount, Handler: h.ChangePassword},
	}
}

// RegisterRoutes mounts the auth routes on e.
func RegisterRoutes(e *echo.Echo, g *Gate, h *Handler) {
	g.Mount(e, Routes(h))
}
