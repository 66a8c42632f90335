package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/userservice/internal/apperror"
	"github.com/keyxmakerx/userservice/internal/plugins/audit"
	"github.com/keyxmakerx/userservice/internal/plugins/auth"
	"github.com/keyxmakerx/userservice/internal/token"
	"github.com/keyxmakerx/userservice/internal/tokenstore"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// memAuditRepo is an in-memory audit.AuditRepository.
type memAuditRepo struct {
	entries []audit.AuditEntry
}

func (r *memAuditRepo) Log(_ context.Context, e *audit.AuditEntry) error {
	e.ID = int64(len(r.entries) + 1)
	r.entries = append([]audit.AuditEntry{*e}, r.entries...)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, limit, offset int) ([]audit.AuditEntry, int, error) {
	if offset >= len(r.entries) {
		return nil, len(r.entries), nil
	}
	end := min(offset+limit, len(r.entries))
	return r.entries[offset:end], len(r.entries), nil
}

func (r *memAuditRepo) ListByTarget(_ context.Context, email string, limit int) ([]audit.AuditEntry, error) {
	var out []audit.AuditEntry
	for _, e := range r.entries {
		if e.TargetEmail == email && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type server struct {
	e     *echo.Echo
	codec *token.Codec
	repo  *memRepo
}

func newServer(t *testing.T) *server {
	t.Helper()
	repo := newMemRepo(adminUser, plainUser, studentUser)
	codec := token.NewCodec(testSecret, time.Hour)
	revocations := tokenstore.NewRevocationStore(tokenstore.NewMemoryStore())
	auditSvc := audit.NewAuditService(&memAuditRepo{})

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			_ = c.JSON(appErr.Code, map[string]string{"type": appErr.Type})
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, map[string]any{"message": he.Message})
			return
		}
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"type": apperror.TypeInternal})
	}

	gate := auth.NewGate(codec, revocations, repo, nil)
	e.Use(gate.Authenticate())
	RegisterRoutes(e, gate, NewHandler(NewAdminService(repo, auditSvc)), audit.NewHandler(auditSvc))

	return &server{e: e, codec: codec, repo: repo}
}

func (s *server) tokenFor(t *testing.T, u auth.User) string {
	t.Helper()
	raw, err := s.codec.IssueSessionToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return raw
}

func (s *server) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_AllAdminOnly(t *testing.T) {
	var sawAudit bool
	for _, r := range Routes(NewHandler(nil), audit.NewHandler(nil)) {
		if r.Access != auth.AdminOnly {
			t.Errorf("%s %s has access %s, want admin", r.Method, r.Path, r.Access)
		}
		if r.Method == http.MethodGet && r.Path == "/user/audit" {
			sawAudit = true
		}
	}
	if !sawAudit {
		t.Error("audit feed missing from the policy table")
	}
}

func TestHandler_NonAdminRejected(t *testing.T) {
	s := newServer(t)
	userToken := s.tokenFor(t, plainUser)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/user/all"},
		{http.MethodGet, "/user/3"},
		{http.MethodPut, "/user/update/3"},
		{http.MethodDelete, "/user/delete/3"},
		{http.MethodPut, "/user/deactivate/3"},
		{http.MethodGet, "/user/audit"},
	}
	for _, p := range paths {
		if rec := s.do(p.method, p.path, userToken, `{}`); rec.Code != http.StatusForbidden {
			t.Errorf("%s %s as USER: expected 403, got %d", p.method, p.path, rec.Code)
		}
		if rec := s.do(p.method, p.path, "", `{}`); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s anonymous: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestHandler_StaleAdminTokenRejected(t *testing.T) {
	s := newServer(t)
	adminToken := s.tokenFor(t, adminUser)

	demoted := adminUser
	demoted.Role = auth.RoleUser
	_ = s.repo.Save(context.Background(), &demoted)

	// The token still claims ADMIN, so the route layer lets it through and
	// the service re-check refuses it.
	for _, path := range []string{"/user/all", "/user/audit"} {
		rec := s.do(http.MethodGet, path, adminToken, "")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestHandler_RecycledAdminEmailRejected(t *testing.T) {
	ops := auth.User{ID: 4, Email: "ops@example.com", Username: "ops", Role: auth.RoleAdmin, Active: true}

	tests := []struct {
		name   string
		retire func(s *server, rootToken string) int
	}{
		{"deleted", func(s *server, rootToken string) int {
			return s.do(http.MethodDelete, "/user/delete/4", rootToken, "").Code
		}},
		{"email edited", func(s *server, rootToken string) int {
			return s.do(http.MethodPut, "/user/update/4", rootToken, `{"email":"ops-old@example.com"}`).Code
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			_ = s.repo.Save(context.Background(), &ops)
			rootToken := s.tokenFor(t, adminUser)
			opsToken := s.tokenFor(t, ops)

			if code := tt.retire(s, rootToken); code != http.StatusOK {
				t.Fatalf("retiring ops account: expected 200, got %d", code)
			}

			// A different ADMIN account now holds the old address.
			heir := auth.User{ID: 5, Email: ops.Email, Username: "heir", Role: auth.RoleAdmin, Active: true}
			_ = s.repo.Save(context.Background(), &heir)

			for _, path := range []string{"/user/all", "/user/audit", "/user/2"} {
				if rec := s.do(http.MethodGet, path, opsToken, ""); rec.Code != http.StatusUnauthorized {
					t.Errorf("%s with old ops token: expected 401, got %d", path, rec.Code)
				}
			}
			if rec := s.do(http.MethodPut, "/user/deactivate/2", opsToken, ""); rec.Code != http.StatusUnauthorized {
				t.Errorf("deactivate with old ops token: expected 401, got %d", rec.Code)
			}
			if u, _ := s.repo.FindByID(context.Background(), plainUser.ID); !u.Active {
				t.Error("target must stay active")
			}

			if rec := s.do(http.MethodGet, "/user/all", s.tokenFor(t, heir), ""); rec.Code != http.StatusOK {
				t.Errorf("heir's own token: expected 200, got %d", rec.Code)
			}
		})
	}
}

func TestHandler_ManageUsers(t *testing.T) {
	s := newServer(t)
	adminToken := s.tokenFor(t, adminUser)

	rec := s.do(http.MethodGet, "/user/all", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var users []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("expected 3 users, got %d", len(users))
	}
	for _, u := range users {
		if _, ok := u["passwordHash"]; ok {
			t.Error("password hash must not be serialized")
		}
	}

	rec = s.do(http.MethodPut, "/user/update/2", adminToken, `{"role":"STUDENT","username":"alice2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"role":"STUDENT"`) {
		t.Errorf("unexpected update body: %s", rec.Body.String())
	}

	if rec := s.do(http.MethodPut, "/user/update/2", adminToken, `{"email":"not-an-email"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid email: expected 400, got %d", rec.Code)
	}

	if rec := s.do(http.MethodPut, "/user/deactivate/3", adminToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/user/3", adminToken, ""); rec.Code != http.StatusOK ||
		!strings.Contains(rec.Body.String(), `"active":false`) {
		t.Errorf("get deactivated: %d %s", rec.Code, rec.Body.String())
	}

	if rec := s.do(http.MethodDelete, "/user/delete/2", adminToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/user/2", adminToken, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: expected 404, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/user/audit", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", rec.Code)
	}
	for _, action := range []string{audit.ActionUserUpdated, audit.ActionUserDeactivated, audit.ActionUserDeleted} {
		if !strings.Contains(rec.Body.String(), action) {
			t.Errorf("audit feed missing %s: %s", action, rec.Body.String())
		}
	}
}

func TestHandler_BadID(t *testing.T) {
	s := newServer(t)
	adminToken := s.tokenFor(t, adminUser)

	for _, path := range []string{"/user/abc", "/user/0", "/user/-4"} {
		if rec := s.do(http.MethodGet, path, adminToken, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}
