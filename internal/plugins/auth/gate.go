package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/metrics"
	"github.com/keyxmakerx/userservice/internal/token"
)

// contextKeyPrincipal is the Echo context key holding the *Principal.
const contextKeyPrincipal = "auth_principal"

// TokenParser verifies bearer tokens. Satisfied by *token.Codec.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// RevocationChecker answers whether a token was revoked. Satisfied by
// *tokenstore.RevocationStore.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

// Gate is the single authorization decision point. Authenticate runs on
// every request and installs a Principal when a valid bearer token is
// presented; the Require* middleware then enforce per-route policy.
type Gate struct {
	tokens      TokenParser
	revocations RevocationChecker
	users       UserRepository
	metrics     *metrics.Metrics
}

// NewGate creates a gate. m may be nil.
func NewGate(tokens TokenParser, revocations RevocationChecker, users UserRepository, m *metrics.Metrics) *Gate {
	return &Gate{tokens: tokens, revocations: revocations, users: users, metrics: m}
}

// Authenticate returns the middleware that resolves the caller.
//
// A request without a bearer token passes through anonymously. A request
// with one is rejected with 401 if the token is revoked, expired, fails
// verification, or is a reset token; otherwise the principal is built from
// the claims alone, without touching the database.
func (g *Gate) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				g.metrics.ObserveGate(metrics.GateAnonymous)
				return next(c)
			}

			principal, err := g.resolve(c.Request().Context(), raw)
			if err != nil {
				return err
			}

			c.Set(contextKeyPrincipal, principal)
			g.metrics.ObserveGate(metrics.GateAccepted)
			return next(c)
		}
	}
}

// resolve runs the token checks in order: revocation, then expiry and
// signature, then purpose.
func (g *Gate) resolve(ctx context.Context, raw string) (*Principal, error) {
	revoked, err := g.revocations.IsRevoked(ctx, raw)
	if err != nil {
		g.metrics.ObserveGate(metrics.GateStoreFailure)
		return nil, apperror.NewInternal(fmt.Errorf("checking revocation: %w", err))
	}
	if revoked {
		g.metrics.ObserveGate(metrics.GateRevoked)
		return nil, errTokenRevoked()
	}

	claims, err := g.tokens.Parse(raw)
	switch {
	case errors.Is(err, token.ErrExpired):
		g.metrics.ObserveGate(metrics.GateExpired)
		return nil, errTokenExpired()
	case err != nil:
		g.metrics.ObserveGate(metrics.GateInvalid)
		return nil, errInvalidToken()
	}

	if claims.Purpose != token.PurposeSession {
		g.metrics.ObserveGate(metrics.GateWrongPurpose)
		return nil, errWrongPurpose()
	}

	role, err := ParseRole(claims.Role)
	if err != nil || claims.Email() == "" || claims.UserID <= 0 {
		g.metrics.ObserveGate(metrics.GateInvalid)
		return nil, errInvalidToken()
	}

	p := &Principal{
		UserID:      claims.UserID,
		Email:       claims.Email(),
		Role:        role,
		Authorities: authoritiesFor(role),
		Token:       raw,
	}
	if claims.ExpiresAt != nil {
		p.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// RequireAuth rejects requests that carry no principal.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetPrincipal(c) == nil {
				return errAuthRequired()
			}
			return next(c)
		}
	}
}

// RequireRole rejects requests without a principal (401) or whose principal
// lacks role (403).
func RequireRole(role Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				return errAuthRequired()
			}
			if !p.HasRole(role) {
				slog.Warn("role check failed",
					slog.String("email", p.Email),
					slog.String("role", string(p.Role)),
					slog.String("required", string(role)),
					slog.String("path", c.Path()),
				)
				return apperror.NewForbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireActive loads the principal's account and rejects the request if
// it no longer exists, has been deactivated, or the email now resolves to a
// different account than the one the token was issued for. Only routes
// that must not act on behalf of a disabled account pay for the lookup.
func (g *Gate) RequireActive() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := GetPrincipal(c)
			if p == nil {
				return errAuthRequired()
			}

			user, err := g.users.FindByEmail(c.Request().Context(), p.Email)
			if apperror.Is(err, apperror.TypeNotFound) {
				return InactiveAccountError()
			}
			if err != nil {
				return apperror.NewInternal(fmt.Errorf("loading account: %w", err))
			}
			if !p.Owns(user) || !user.Active {
				return InactiveAccountError()
			}
			return next(c)
		}
	}
}

// --- Exported getters for other plugins ---

// GetPrincipal returns the authenticated caller, or nil for anonymous
// requests.
func GetPrincipal(c echo.Context) *Principal {
	p, ok := c.Get(contextKeyPrincipal).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// ok is false when the header is absent or uses another scheme; a Bearer
// header with an empty token yields ok with an empty string, which then
// fails verification.
func BearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
