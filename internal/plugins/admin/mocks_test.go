package admin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
)

// memRepo is an in-memory auth.UserRepository.
type memRepo struct {
	mu      sync.Mutex
	users   map[int64]auth.User
	saveErr error
}

func newMemRepo(users ...auth.User) *memRepo {
	r := &memRepo{users: make(map[int64]auth.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("user not found")
}

func (r *memRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NewNotFound("user not found")
	}
	return &u, nil
}

func (r *memRepo) FindAllActive(_ context.Context) ([]auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []auth.User
	for _, u := range r.users {
		if u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Save(_ context.Context, user *auth.User) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *memRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperror.NewNotFound("user not found")
	}
	delete(r.users, id)
	return nil
}

// mockAudit captures recorded entries.
type mockAudit struct {
	mu      sync.Mutex
	entries []*audit.AuditEntry
}

func (m *mockAudit) Record(_ context.Context, e *audit.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

// Fixture accounts.
var (
	adminUser   = auth.User{ID: 1, Email: "root@example.com", Username: "root", Role: auth.RoleAdmin, Active: true}
	plainUser   = auth.User{ID: 2, Email: "alice@example.com", Username: "alice", Role: auth.RoleUser, Active: true}
	studentUser = auth.User{ID: 3, Email: "bob@example.com", Username: "bob", Role: auth.RoleStudent, Active: true}
)

func principalFor(u auth.User) *auth.Principal {
	return &auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}
