package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/apperror"
)

// Handler handles the /auth and /user self-service endpoints. Handlers are
// thin: they bind the request, call the service, and write JSON. No
// business logic lives here.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// validatable is implemented by every request DTO.
type validatable interface {
	Validate() error
}

// bind decodes the JSON body into req and validates it.
func bind(c echo.Context, req validatable) error {
	if err := c.Bind(req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return apperror.NewValidation(err.Error())
	}
	return nil
}

// Register creates an account (POST /auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if _, err := h.service.Register(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "user registered successfully"})
}

// Login returns a session token (POST /auth/login). Any failure, including
// a malformed body, is reported as invalid credentials.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return errInvalidCredentials()
	}

	raw, err := h.service.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: raw})
}

// Logout revokes the presented token (POST /auth/logout).
func (h *Handler) Logout(c echo.Context) error {
	if err := h.service.Logout(c.Request().Context(), GetPrincipal(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// ForgotPassword emails a reset link (POST /auth/forgot-password).
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.service.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "password reset email sent"})
}

// ResetPassword redeems a reset token (POST /auth/reset-password).
func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.service.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}

// Profile returns the caller's account (GET /user/profile).
func (h *Handler) Profile(c echo.Context) error {
	p := GetPrincipal(c)
	if p == nil {
		return apperror.NewMissingContext()
	}

	user, err := h.service.GetProfile(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileOf(user))
}

// UpdateProfile edits the caller's username or email (PUT /user/profile).
func (h *Handler) UpdateProfile(c echo.Context) error {
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.service.UpdateProfile(c.Request().Context(), GetPrincipal(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ChangePassword replaces the caller's password (PUT /user/change-password).
func (h *Handler) ChangePassword(c echo.Context) error {
	p := GetPrincipal(c)
	if p == nil {
		return apperror.NewMissingContext()
	}

	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.service.ChangePassword(c.Request().Context(), p, req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
