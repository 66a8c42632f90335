package auth

import (
	"net/http"

	"github.com/keyxmakerx/userservice/internal/apperror"
)

// Client-facing errors. Authentication failures share one status and a
// short, detail-free message per type.

func errTokenRevoked() *apperror.AppError {
	return apperror.New(http.StatusUnauthorized, apperror.TypeTokenRevoked, "token revoked")
}

func errTokenExpired() *apperror.AppError {
	return apperror.New(http.StatusUnauthorized, apperror.TypeTokenExpired, "token expired")
}

func errInvalidToken() *apperror.AppError {
	return apperror.New(http.StatusUnauthorized, apperror.TypeInvalidSignature, "invalid token")
}

func errWrongPurpose() *apperror.AppError {
	return apperror.New(http.StatusUnauthorized, apperror.TypeWrongPurpose, "invalid token")
}

func errAuthRequired() *apperror.AppError {
	return apperror.NewUnauthorized("authentication required")
}

// InactiveAccountError is returned when the token's account was deleted,
// deactivated, or its email now belongs to a different account. Exported
// for the admin plugin, which loads the caller's account too.
func InactiveAccountError() *apperror.AppError {
	return apperror.NewUnauthorized("account is not active")
}

// errInvalidCredentials covers unknown email, wrong password, and
// deactivated account alike.
func errInvalidCredentials() *apperror.AppError {
	return apperror.New(http.StatusUnauthorized, apperror.TypeInvalidCredentials, "invalid email or password")
}

// DuplicateEmailError is returned when an email is already registered.
// Exported for the admin plugin, which edits emails too.
func DuplicateEmailError() *apperror.AppError {
	return apperror.New(http.StatusBadRequest, apperror.TypeDuplicateEmail, "an account with this email already exists")
}

// InvalidRoleError is returned for a role name outside Roles.
func InvalidRoleError() *apperror.AppError {
	return apperror.New(http.StatusBadRequest, apperror.TypeInvalidRole, "role must be one of USER, STUDENT, ADMIN")
}

func errInvalidOrExpiredToken() *apperror.AppError {
	return apperror.New(http.StatusBadRequest, apperror.TypeInvalidOrExpiredToken, "reset token is invalid or has expired")
}

func errIncorrectOldPassword() *apperror.AppError {
	return apperror.New(http.StatusBadRequest, apperror.TypeIncorrectOldPassword, "old password is incorrect")
}
