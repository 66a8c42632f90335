// Package auth owns user accounts and the request authorization pipeline:
// registration, credential login, bearer-token sessions, logout by
// revocation, password reset by emailed single-use tokens, and profile
// self-service. Session tokens are stateless JWTs; the only server-side
// state is the revocation set and the pending reset tokens.
//
// This is a CORE plugin -- every other route depends on its Gate.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Role is the closed set of account roles. The bare name is what goes into
// tokens and the database; there is no prefix convention.
type Role string

const (
	RoleUser    Role = "USER"
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every valid role, in display order.
var Roles = []Role{RoleUser, RoleStudent, RoleAdmin}

// ErrInvalidRole is returned by ParseRole for names outside Roles.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole converts a name into a Role. Matching is exact: "admin" and
// "ROLE_ADMIN" are both rejected.
func ParseRole(name string) (Role, error) {
	for _, r := range Roles {
		if string(r) == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, name)
}

// User is a registered account. The struct is used directly for database
// scanning and JSON responses.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose in JSON responses.
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the account holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal is the authenticated caller of one request, built by the Gate
// from token claims. It is never cached across requests.
type Principal struct {
	UserID      int64
	Email       string
	Role        Role
	Authorities []string

	// Token is the raw bearer token the principal was built from. Logout
	// and email changes revoke it.
	Token string

	// TokenExpiresAt is the expiry claim of Token.
	TokenExpiresAt time.Time
}

// Owns reports whether user is the account the principal's token was issued
// for. Emails are reusable after a change or a delete; account ids are not.
func (p *Principal) Owns(user *User) bool {
	return user != nil && user.ID == p.UserID
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role Role) bool {
	return p != nil && p.Role == role
}

// authoritiesFor expands a role into granted authorities. Every
// authenticated principal holds "authenticated" plus its role name.
func authoritiesFor(role Role) []string {
	return []string{"authenticated", string(role)}
}

// --- Request DTOs (bound from HTTP requests) ---

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// RegisterRequest is the body of POST /auth/register. Role is validated by
// the service so that an unknown role reports invalid_role rather than a
// generic validation error.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate checks field shapes.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(passwordBytes)),
		validation.Field(&r.Role, validation.Required),
	)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks field presence only; shape errors would leak nothing but
// also help nobody.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate checks field shapes.
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Validate checks field shapes.
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.By(passwordBytes)),
	)
}

// ChangePasswordRequest is the body of PUT /user/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Validate checks field shapes.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.By(passwordBytes)),
	)
}

// UpdateProfileRequest is the body of PUT /user/profile. Empty fields are
// left unchanged.
type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Validate checks field shapes and that at least one field is set.
func (r UpdateProfileRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" && strings.TrimSpace(r.Email) == "" {
		return errors.New("username or email is required")
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Length(3, 255), is.Email),
	)
}

// passwordBytes rejects passwords bcrypt would refuse to hash.
func passwordBytes(value interface{}) error {
	s, _ := value.(string)
	if len(s) > maxPasswordBytes {
		return fmt.Errorf("must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

// --- Responses ---

// TokenResponse is returned by login and by profile updates that rotate
// the session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ProfileResponse is the body of GET /user/profile.
type ProfileResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// MessageResponse is the body of operations that return no data.
type MessageResponse struct {
	Message string `json:"message"`
}

// UpdateProfileResult reports what changed. Token is set only when the
// email changed and the old session token was revoked.
type UpdateProfileResult struct {
	Profile ProfileResponse `json:"profile"`
	Token   string          `json:"token,omitempty"`
}

func profileOf(u *User) ProfileResponse {
	return ProfileResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
