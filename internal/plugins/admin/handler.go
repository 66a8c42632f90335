package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
)

// Handler handles the admin user-management endpoints.
type Handler struct {
	service AdminService
}

// NewHandler creates a new admin handler.
func NewHandler(service AdminService) *Handler {
	return &Handler{service: service}
}

// userID parses the :id path parameter.
func userID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid user id")
	}
	return id, nil
}

// confirmed runs next only after the service has re-checked the caller
// against the database. Used for handlers owned by other plugins.
func (h *Handler) confirmed(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.service.ConfirmAdmin(c.Request().Context(), auth.GetPrincipal(c)); err != nil {
			return err
		}
		return next(c)
	}
}

// ListUsers returns every active account (GET /user/all).
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context(), auth.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser returns one account (GET /user/:id).
func (h *Handler) GetUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	user, err := h.service.GetUser(c.Request().Context(), auth.GetPrincipal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser edits an account (PUT /user/update/:id).
func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return apperror.NewValidation(err.Error())
	}

	user, err := h.service.UpdateUser(c.Request().Context(), auth.GetPrincipal(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes an account (DELETE /user/delete/:id).
func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteUser(c.Request().Context(), auth.GetPrincipal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auth.MessageResponse{Message: "user deleted"})
}

// DeactivateUser disables an account (PUT /user/deactivate/:id).
func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	if err := h.service.DeactivateUser(c.Request().Context(), auth.GetPrincipal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auth.MessageResponse{Message: "user deactivated"})
}
