package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/token"
	"github.com/keyxmakerx/userservice/internal/tokenstore"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// --- Mock Repository ---

// mockUserRepo implements UserRepository with overridable functions.
type mockUserRepo struct {
	findByEmailFn   func(ctx context.Context, email string) (*User, error)
	existsByEmailFn func(ctx context.Context, email string) (bool, error)
	findByIDFn      func(ctx context.Context, id int64) (*User, error)
	findAllActiveFn func(ctx context.Context) ([]User, error)
	saveFn          func(ctx context.Context, user *User) error
	deleteFn        func(ctx context.Context, id int64) error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn != nil {
		return m.existsByEmailFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("user not found")
}

func (m *mockUserRepo) FindAllActive(ctx context.Context) ([]User, error) {
	if m.findAllActiveFn != nil {
		return m.findAllActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) Save(ctx context.Context, user *User) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// memUserRepo is a working in-memory UserRepository for flow tests.
type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]User)}
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user not found")
}

func (r *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NewNotFound("user not found")
	}
	return &u, nil
}

func (r *memUserRepo) FindAllActive(_ context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, u := range r.users {
		if u.Active {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) Save(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Email == user.Email && id != user.ID {
			return ErrDuplicateEmail
		}
	}
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperror.NewNotFound("user not found")
	}
	delete(r.users, id)
	return nil
}

// --- Mock Mailer ---

type sentMail struct {
	to, subject, body string
}

// mockMailer implements smtp.Mailer and captures sent mail.
type mockMailer struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, to, subject, body string) error
	sent   []sentMail
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, to, subject, body)
	}
	return nil
}

// --- Mock Audit ---

type mockAudit struct {
	mu      sync.Mutex
	entries []audit.AuditEntry
}

func (m *mockAudit) Record(_ context.Context, entry *audit.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- Test Helpers ---

// testEnv wires a real codec, real in-memory token stores, and bcrypt at
// minimum cost around the given repository.
type testEnv struct {
	codec       *token.Codec
	store       *tokenstore.MemoryStore
	revocations *tokenstore.RevocationStore
	resets      *tokenstore.ResetTokenStore
	hasher      PasswordHasher
	mailer      *mockMailer
	audit       *mockAudit
	service     *authService
}

func newTestEnv(repo UserRepository) *testEnv {
	codec := token.NewCodec(testSecret, time.Hour)
	store := tokenstore.NewMemoryStore()
	env := &testEnv{
		codec:       codec,
		store:       store,
		revocations: tokenstore.NewRevocationStore(store),
		resets:      tokenstore.NewResetTokenStore(store, codec, token.ResetTTL),
		hasher:      NewBcryptHasher(bcrypt.MinCost),
		mailer:      &mockMailer{},
		audit:       &mockAudit{},
	}
	env.service = NewAuthService(ServiceDeps{
		Repo:          repo,
		Hasher:        env.hasher,
		Tokens:        codec,
		Revocations:   env.revocations,
		Resets:        env.resets,
		Mailer:        env.mailer,
		Audit:         env.audit,
		ResetLinkBase: "https://app.example.com/auth/reset-password",
	}).(*authService)
	return env
}

// mustHash hashes at minimum cost or fails the test.
func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	return string(h)
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
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

// assertAppErrorType checks the machine-readable type as well as the code.
func assertAppErrorType(t *testing.T, err error, expectedCode int, expectedType string) {
	t.Helper()
	assertAppError(t, err, expectedCode)
	if !apperror.Is(err, expectedType) {
		t.Errorf("expected error type %q, got %v", expectedType, err)
	}
}

// testErrorHandler mirrors the JSON error handler installed by the app.
func testErrorHandler(err error, c echo.Context) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		_ = c.JSON(appErr.Code, map[string]string{"type": appErr.Type, "message": appErr.Message})
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"message": he.Message})
		return
	}
	_ = c.JSON(http.StatusInternalServerError, map[string]string{"type": apperror.TypeInternal})
}
