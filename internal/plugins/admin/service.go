package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
	"github.com/keyxmakerx/userservice/internal/sanitize"
)

// AdminService defines the user management operations.
type AdminService interface {
	ConfirmAdmin(ctx context.Context, actor *auth.Principal) error
	ListUsers(ctx context.Context, actor *auth.Principal) ([]auth.User, error)
	GetUser(ctx context.Context, actor *auth.Principal, id int64) (*auth.User, error)
	UpdateUser(ctx context.Context, actor *auth.Principal, id int64, req UpdateUserRequest) (*auth.User, error)
	DeleteUser(ctx context.Context, actor *auth.Principal, id int64) error
	DeactivateUser(ctx context.Context, actor *auth.Principal, id int64) error
}

// adminService implements AdminService on top of the auth repository.
type adminService struct {
	users auth.UserRepository
	audit auth.AuditRecorder
}

// NewAdminService creates a new admin service. recorder may be nil.
func NewAdminService(users auth.UserRepository, recorder auth.AuditRecorder) AdminService {
	return &adminService{users: users, audit: recorder}
}

// ConfirmAdmin checks the actor is still an active ADMIN account.
func (s *adminService) ConfirmAdmin(ctx context.Context, actor *auth.Principal) error {
	_, err := s.confirmAdmin(ctx, actor)
	return err
}

// confirmAdmin loads the actor's account and checks it is an active ADMIN.
// A token minted before a demotion or deactivation fails here with 403. A
// token whose email now belongs to a different account, after an email
// edit or a delete and re-registration, fails with 401.
func (s *adminService) confirmAdmin(ctx context.Context, actor *auth.Principal) (*auth.User, error) {
	if actor == nil {
		return nil, apperror.NewForbidden("admin access required")
	}

	user, err := s.users.FindByEmail(ctx, actor.Email)
	if apperror.Is(err, apperror.TypeNotFound) {
		return nil, apperror.NewForbidden("admin access required")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading acting admin: %w", err))
	}
	if !actor.Owns(user) {
		slog.Warn("admin token outlived its account",
			slog.String("email", actor.Email),
			slog.Int64("token_user_id", actor.UserID),
			slog.Int64("user_id", user.ID),
		)
		return nil, auth.InactiveAccountError()
	}
	if !user.Active || !user.IsAdmin() {
		slog.Warn("admin re-check failed",
			slog.String("email", actor.Email),
			slog.String("role", string(user.Role)),
			slog.Bool("active", user.Active),
		)
		return nil, apperror.NewForbidden("admin access required")
	}
	return user, nil
}

// findTarget loads the account an operation acts on.
func (s *adminService) findTarget(ctx context.Context, id int64) (*auth.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if apperror.Is(err, apperror.TypeNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading user %d: %w", id, err))
	}
	return user, nil
}

// ListUsers returns all active accounts.
func (s *adminService) ListUsers(ctx context.Context, actor *auth.Principal) ([]auth.User, error) {
	if _, err := s.confirmAdmin(ctx, actor); err != nil {
		return nil, err
	}

	users, err := s.users.FindAllActive(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing users: %w", err))
	}
	if users == nil {
		users = []auth.User{}
	}
	return users, nil
}

// GetUser returns one account by ID, active or not.
func (s *adminService) GetUser(ctx context.Context, actor *auth.Principal, id int64) (*auth.User, error) {
	if _, err := s.confirmAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return s.findTarget(ctx, id)
}

// UpdateUser edits username, email, and role. Tokens already issued to the
// target keep their old claims until they expire.
func (s *adminService) UpdateUser(ctx context.Context, actor *auth.Principal, id int64, req UpdateUserRequest) (*auth.User, error) {
	admin, err := s.confirmAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}

	user, err := s.findTarget(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}

	if req.Role != "" {
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			return nil, auth.InvalidRoleError()
		}
		if user.ID == admin.ID && role != auth.RoleAdmin {
			return nil, apperror.NewBadRequest("cannot remove your own admin role")
		}
		if role != user.Role {
			changes["role"] = string(role)
			user.Role = role
		}
	}

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

	if email := strings.TrimSpace(req.Email); email != "" && email != user.Email {
		exists, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
		}
		if exists {
			return nil, auth.DuplicateEmailError()
		}
		changes["email"] = email
		changes["previous_email"] = user.Email
		user.Email = email
	}

	if len(changes) == 0 {
		return user, nil
	}

	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			return nil, auth.DuplicateEmailError()
		}
		return nil, apperror.NewInternal(fmt.Errorf("updating user %d: %w", id, err))
	}

	s.record(ctx, admin.Email, audit.ActionUserUpdated, user, changes)
	slog.Info("user updated by admin",
		slog.Int64("target_user", user.ID),
		slog.String("by", admin.Email),
	)
	return user, nil
}

// DeleteUser hard-deletes an account.
func (s *adminService) DeleteUser(ctx context.Context, actor *auth.Principal, id int64) error {
	admin, err := s.confirmAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if admin.ID == id {
		return apperror.NewBadRequest("cannot delete your own account")
	}

	user, err := s.findTarget(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if apperror.Is(err, apperror.TypeNotFound) {
			return err
		}
		return apperror.NewInternal(fmt.Errorf("deleting user %d: %w", id, err))
	}

	s.record(ctx, admin.Email, audit.ActionUserDeleted, user, nil)
	slog.Info("user deleted by admin",
		slog.Int64("target_user", id),
		slog.String("by", admin.Email),
	)
	return nil
}

// DeactivateUser soft-deletes an account: it stays in the database but can
// no longer log in or pass RequireActive. Deactivating an inactive account
// is a no-op.
func (s *adminService) DeactivateUser(ctx context.Context, actor *auth.Principal, id int64) error {
	admin, err := s.confirmAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if admin.ID == id {
		return apperror.NewBadRequest("cannot deactivate your own account")
	}

	user, err := s.findTarget(ctx, id)
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}

	user.Active = false
	if err := s.users.Save(ctx, user); err != nil {
		return apperror.NewInternal(fmt.Errorf("deactivating user %d: %w", id, err))
	}

	s.record(ctx, admin.Email, audit.ActionUserDeactivated, user, nil)
	slog.Info("user deactivated by admin",
		slog.Int64("target_user", id),
		slog.String("by", admin.Email),
	)
	return nil
}

func (s *adminService) record(ctx context.Context, actor, action string, target *auth.User, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, &audit.AuditEntry{
		ActorEmail:  actor,
		Action:      action,
		TargetID:    target.ID,
		TargetEmail: target.Email,
		Details:     details,
	})
}
