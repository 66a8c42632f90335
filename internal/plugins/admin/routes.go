package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
)

// Routes returns the policy table for user management and the audit feed.
// Every route is AdminOnly; the service re-checks the actor against the
// database.
func Routes(h *Handler, auditHandler *audit.Handler) []auth.Route {
	return []auth.Route{
		{Method: http.MethodGet, Path: "/user/all", Access: auth.AdminOnly, Handler: h.ListUsers},
		{Method: http.MethodGet, Path: "/user/audit", Access: auth.AdminOnly, Handler: h.confirmed(auditHandler.List)},
		{Method: http.MethodGet, Path: "/user/:id", Access: auth.AdminOnly, Handler: h.GetUser},
		{Method: http.MethodPut, Path: "/user/update/:id", Access: auth.AdminOnly, Handler: h.UpdateUser},
		{Method: http.MethodDelete, Path: "/user/delete/:id", Access: auth.AdminOnly, Handler: h.DeleteUser},
		{Method: http.MethodPut, Path: "/user/deactivate/:id", Access: auth.AdminOnly, Handler: h.DeactivateUser},
	}
}

// RegisterRoutes mounts the admin table on e.
func RegisterRoutes(e *echo.Echo, g *auth.Gate, h *Handler, auditHandler *audit.Handler) {
	g.Mount(e, Routes(h, auditHandler))
}
