package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/metrics"
	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/plugins/smtp"
	"github.com/keyxmakerx/userservice/internal/sanitize"
	"github.com/keyxmakerx/userservice/internal/token"
	"github.com/keyxmakerx/userservice/internal/tokenstore"
)

// TokenCodec mints and verifies tokens. Satisfied by *token.Codec.
type TokenCodec interface {
	TokenParser
	IssueSessionToken(userID int64, email, role string) (string, error)
}

// Revoker adds tokens to the revocation set.
type Revoker interface {
	Revoke(ctx context.Context, raw string) error
}

// ResetTokens is the single-use reset token mapping. Satisfied by
// *tokenstore.ResetTokenStore.
type ResetTokens interface {
	Issue(ctx context.Context, email string) (string, error)
	Redeem(ctx context.Context, raw string) (string, error)
	Restore(ctx context.Context, raw, email string, ttl time.Duration) error
	Discard(ctx context.Context, raw string) error
}

// AuditRecorder records lifecycle events without failing the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry *audit.AuditEntry)
}

// AuthService defines the account operations behind the /auth and /user
// routes. Handlers call these methods -- they never touch the repository
// directly.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (string, error)
	Logout(ctx context.Context, p *Principal) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, raw, newPassword string) error
	ChangePassword(ctx context.Context, p *Principal, req ChangePasswordRequest) error
	GetProfile(ctx context.Context, p *Principal) (*User, error)
	UpdateProfile(ctx context.Context, p *Principal, req UpdateProfileRequest) (*UpdateProfileResult, error)
}

// ServiceDeps bundles the collaborators of the auth service.
type ServiceDeps struct {
	Repo          UserRepository
	Hasher        PasswordHasher
	Tokens        TokenCodec
	Revocations   Revoker
	Resets        ResetTokens
	Mailer        smtp.Mailer
	Audit         AuditRecorder
	Metrics       *metrics.Metrics
	ResetLinkBase string
}

// authService implements AuthService.
type authService struct {
	ServiceDeps
	now func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates a new auth service.
func NewAuthService(deps ServiceDeps) AuthService {
	return &authService{ServiceDeps: deps, now: time.Now}
}

// Register creates an account. The email check runs before the role check
// so that an existing email is always reported as a duplicate.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.TrimSpace(req.Email)

	exists, err := s.Repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, DuplicateEmailError()
	}

	role, err := ParseRole(req.Role)
	if err != nil {
		return nil, InvalidRoleError()
	}

	username := sanitize.PlainText(req.Username)
	if username == "" {
		return nil, apperror.NewValidation("username: cannot be blank")
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	user := &User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Repo.Save(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, DuplicateEmailError()
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	s.record(ctx, user.Email, audit.ActionAccountRegistered, user, map[string]any{"role": string(role)})
	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", string(role)),
	)
	return user, nil
}

// Login verifies credentials and mints a session token. Unknown email,
// wrong password, and deactivated account all return the same error after
// the same amount of hashing work.
func (s *authService) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.Repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if apperror.Is(err, apperror.TypeNotFound) {
		s.Hasher.Verify(req.Password, s.timingDigest())
		s.Metrics.ObserveLogin(metrics.LoginInvalidCredentials)
		return "", errInvalidCredentials()
	}
	if err != nil {
		s.Metrics.ObserveLogin(metrics.LoginError)
		return "", apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !s.Hasher.Verify(req.Password, user.PasswordHash) || !user.Active {
		s.Metrics.ObserveLogin(metrics.LoginInvalidCredentials)
		slog.Info("login rejected", slog.Int64("user_id", user.ID), slog.Bool("active", user.Active))
		return "", errInvalidCredentials()
	}

	raw, err := s.Tokens.IssueSessionToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		s.Metrics.ObserveLogin(metrics.LoginError)
		return "", apperror.NewInternal(err)
	}

	s.Metrics.ObserveLogin(metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return raw, nil
}

// Logout revokes the presented token. Revoking an already revoked token is
// a no-op, though the Gate rejects such a request before it gets here.
func (s *authService) Logout(ctx context.Context, p *Principal) error {
	if p == nil {
		return apperror.NewMissingContext()
	}
	if err := s.Revocations.Revoke(ctx, p.Token); err != nil {
		return apperror.NewInternal(fmt.Errorf("revoking token: %w", err))
	}
	slog.Info("token revoked", slog.String("email", p.Email), slog.String("reason", "logout"))
	return nil
}

// ForgotPassword emails a reset link to an existing, active account. If the
// email cannot be sent the token is discarded so that no usable token
// exists that the owner never received.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	user, err := s.Repo.FindByEmail(ctx, email)
	if apperror.Is(err, apperror.TypeNotFound) {
		return apperror.NewNotFound("no account with this email")
	}
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	if !user.Active {
		return apperror.NewNotFound("no account with this email")
	}

	raw, err := s.Resets.Issue(ctx, user.Email)
	if err != nil {
		return apperror.NewInternal(err)
	}

	body, err := renderString(ctx, resetEmail(user.Username, resetLink(s.ResetLinkBase, raw)))
	if err != nil {
		s.discard(ctx, raw)
		return apperror.NewInternal(fmt.Errorf("rendering reset email: %w", err))
	}

	if err := s.Mailer.Send(ctx, user.Email, resetEmailSubject, body); err != nil {
		s.discard(ctx, raw)
		return apperror.NewInternal(fmt.Errorf("sending reset email: %w", err))
	}

	slog.Info("password reset requested", slog.Int64("user_id", user.ID))
	return nil
}

// ResetPassword redeems a reset token and sets a new password. Redemption
// is a single atomic take, so of two concurrent requests with the same
// token exactly one proceeds. If the password write then fails, the token
// is restored for its remaining lifetime.
func (s *authService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	claims, err := s.Tokens.Parse(raw)
	if err != nil || claims.Purpose != token.PurposeReset {
		return errInvalidOrExpiredToken()
	}

	email, err := s.Resets.Redeem(ctx, raw)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return errInvalidOrExpiredToken()
	}
	if err != nil {
		return apperror.NewInternal(err)
	}
	if email != claims.Email() {
		return errInvalidOrExpiredToken()
	}

	restore := func() {
		var ttl time.Duration
		if claims.ExpiresAt != nil {
			ttl = claims.ExpiresAt.Sub(s.now())
		}
		if err := s.Resets.Restore(ctx, raw, email, ttl); err != nil {
			slog.Error("failed to restore reset token", slog.Any("error", err))
		}
	}

	user, err := s.Repo.FindByEmail(ctx, email)
	if apperror.Is(err, apperror.TypeNotFound) {
		return errInvalidOrExpiredToken()
	}
	if err != nil {
		restore()
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		restore()
		return apperror.NewInternal(err)
	}

	user.PasswordHash = hash
	if err := s.Repo.Save(ctx, user); err != nil {
		restore()
		return apperror.NewInternal(fmt.Errorf("saving password: %w", err))
	}

	s.record(ctx, user.Email, audit.ActionPasswordReset, user, nil)
	slog.Info("password reset", slog.Int64("user_id", user.ID))
	return nil
}

// ChangePassword replaces the caller's password after verifying the old one.
func (s *authService) ChangePassword(ctx context.Context, p *Principal, req ChangePasswordRequest) error {
	user, err := s.GetProfile(ctx, p)
	if err != nil {
		return err
	}

	if !s.Hasher.Verify(req.OldPassword, user.PasswordHash) {
		return errIncorrectOldPassword()
	}

	hash, err := s.Hasher.Hash(req.NewPassword)
	if err != nil {
		return apperror.NewInternal(err)
	}

	user.PasswordHash = hash
	if err := s.Repo.Save(ctx, user); err != nil {
		return apperror.NewInternal(fmt.Errorf("saving password: %w", err))
	}

	s.record(ctx, user.Email, audit.ActionPasswordChanged, user, nil)
	slog.Info("password changed", slog.Int64("user_id", user.ID))
	return nil
}

// GetProfile returns the caller's account. The token's subject is looked up
// by email, and the row it finds must be the one the token was issued for:
// after an email change or delete, a new account may hold that address.
func (s *authService) GetProfile(ctx context.Context, p *Principal) (*User, error) {
	if p == nil {
		return nil, apperror.NewMissingContext()
	}

	user, err := s.Repo.FindByEmail(ctx, p.Email)
	if apperror.Is(err, apperror.TypeNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	if !p.Owns(user) {
		slog.Warn("session token outlived its account",
			slog.Int64("token_user_id", p.UserID),
			slog.Int64("user_id", user.ID),
		)
		return nil, InactiveAccountError()
	}
	return user, nil
}

// UpdateProfile changes the caller's username and/or email. Tokens carry
// the email as subject, so an email change revokes the presented token and
// returns a fresh one for the new address.
func (s *authService) UpdateProfile(ctx context.Context, p *Principal, req UpdateProfileRequest) (*UpdateProfileResult, error) {
	user, err := s.GetProfile(ctx, p)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if req.Username != "" {
		username := sanitize.PlainText(req.Username)
		if username == "" {
			return nil, apperror.NewValidation("username: cannot be blank")
		}
		if username != user.Username {
			changes["username"] = username
			user.Username = username
		}
	}

	oldEmail := user.Email
	newEmail := strings.TrimSpace(req.Email)
	emailChanged := newEmail != "" && newEmail != oldEmail
	if emailChanged {
		exists, err := s.Repo.ExistsByEmail(ctx, newEmail)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
		}
		if exists {
			return nil, DuplicateEmailError()
		}
		changes["email"] = newEmail
		user.Email = newEmail
	}

	result := &UpdateProfileResult{Profile: profileOf(user)}
	if len(changes) == 0 {
		return result, nil
	}

	if err := s.Repo.Save(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, DuplicateEmailError()
		}
		return nil, apperror.NewInternal(fmt.Errorf("saving profile: %w", err))
	}

	if emailChanged {
		raw, err := s.Tokens.IssueSessionToken(user.ID, user.Email, string(user.Role))
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		if err := s.Revocations.Revoke(ctx, p.Token); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("revoking token: %w", err))
		}
		result.Token = raw
		slog.Info("token revoked", slog.String("email", oldEmail), slog.String("reason", "email changed"))
	}

	s.record(ctx, oldEmail, audit.ActionProfileUpdated, user, changes)
	return result, nil
}

// timingDigest returns a digest at the configured cost for unknown-email
// logins to verify against.
func (s *authService) timingDigest() string {
	s.dummyOnce.Do(func() {
		d, err := s.Hasher.Hash("timing-equalizer")
		if err != nil {
			slog.Warn("could not build timing digest", slog.Any("error", err))
			return
		}
		s.dummyDigest = d
	})
	return s.dummyDigest
}

func (s *authService) discard(ctx context.Context, raw string) {
	if err := s.Resets.Discard(ctx, raw); err != nil {
		slog.Error("failed to discard reset token", slog.Any("error", err))
	}
}

func (s *authService) record(ctx context.Context, actor, action string, target *User, details map[string]any) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, &audit.AuditEntry{
		ActorEmail:  actor,
		Action:      action,
		TargetID:    target.ID,
		TargetEmail: target.Email,
		Details:     details,
	})
}
