// Package token mints and parses the signed bearer tokens used for sessions
// and password resets. Tokens are HS256 JWTs carrying the account email as
// subject, the account id, the bare role name, and a purpose claim that
// keeps reset tokens from ever authenticating a request.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ResetTTL is the fixed lifetime of a password-reset token.
const ResetTTL = 15 * time.Minute

// Purpose distinguishes session tokens from reset tokens.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
)

var (
	// ErrInvalidSignature covers a MAC that does not verify as well as any
	// token that cannot be decoded at all.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired is returned for a correctly signed token at or past its expiry.
	ErrExpired = errors.New("token expired")
)

// Claims is the payload of every token the codec issues.
type Claims struct {
	// UserID pins a session token to one account row. An email is reusable
	// once its owner changes it; the id is not.
	UserID  int64   `json:"uid,omitempty"`
	Role    string  `json:"role,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Email returns the subject claim.
func (c *Claims) Email() string {
	return c.Subject
}

// Codec issues and verifies tokens with a shared HMAC secret.
type Codec struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewCodec creates a codec. sessionTTL applies to session tokens only; reset
// tokens always live for ResetTTL.
func NewCodec(secret string, sessionTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of the codec that reads time from now. Used by
// tests to mint tokens in the past or parse them in the future.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// IssueSessionToken mints a session token for the given account.
func (c *Codec) IssueSessionToken(userID int64, email, role string) (string, error) {
	return c.issue(userID, email, role, PurposeSession, c.sessionTTL)
}

// IssueResetToken mints a single-purpose password-reset token.
func (c *Codec) IssueResetToken(email string) (string, error) {
	return c.issue(0, email, "", PurposeReset, ResetTTL)
}

func (c *Codec) issue(userID int64, email, role string, purpose Purpose, ttl time.Duration) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		UserID:  userID,
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", purpose, err)
	}
	return signed, nil
}

// Parse verifies the signature first and the expiry second. A tampered or
// undecodable token yields ErrInvalidSignature; a genuine token whose expiry
// has passed yields ErrExpired.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

// IsValid reports whether the token parses. Expiry is folded into false;
// a signature failure is still returned so callers can reject hard.
func (c *Codec) IsValid(raw string) (bool, error) {
	_, err := c.Parse(raw)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrExpired):
		return false, nil
	default:
		return false, err
	}
}
