package auth

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// Access is the permission level a route requires.
type Access int

const (
	// Anonymous routes accept any caller, with or without a token.
	Anonymous Access = iota

	// Authenticated routes need a valid session token.
	Authenticated

	// ActiveAccount routes need a valid session token whose account still
	// exists and is active. Costs one database lookup per request.
	ActiveAccount

	// AdminOnly routes need a valid session token with the ADMIN role.
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case ActiveAccount:
		return "active"
	case AdminOnly:
		return "admin"
	default:
		return "unknown"
	}
}

// Route is one row of a plugin's route policy table.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Handler echo.HandlerFunc

	// Middleware runs after the access checks (e.g. rate limiting).
	Middleware []echo.MiddlewareFunc
}

// Router is satisfied by *echo.Echo and *echo.Group.
type Router interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Mount registers every route in table on r with the middleware its Access
// level requires. Authenticate must already run ahead of r.
func (g *Gate) Mount(r Router, table []Route) {
	for _, rt := range table {
		mw := append(g.accessMiddleware(rt.Access), rt.Middleware...)
		r.Add(rt.Method, rt.Path, rt.Handler, mw...)
		slog.Debug("route mounted",
			slog.String("method", rt.Method),
			slog.String("path", rt.Path),
			slog.String("access", rt.Access.String()),
		)
	}
}

func (g *Gate) accessMiddleware(a Access) []echo.MiddlewareFunc {
	switch a {
	case Authenticated:
		return []echo.MiddlewareFunc{RequireAuth()}
	case ActiveAccount:
		return []echo.MiddlewareFunc{RequireAuth(), g.RequireActive()}
	case AdminOnly:
		return []echo.MiddlewareFunc{RequireRole(RoleAdmin)}
	default:
		return nil
	}
}
