package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/internal/panel/store/drivers/sqlite"
	"github.com/opsdeck/opsdeck/pkg/cryptox"
	"github.com/opsdeck/opsdeck/pkg/idx"
	"github.com/opsdeck/opsdeck/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *Router
	store  *sqlite.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	issuer, err := jwtx.NewIssuer("router-test-secret", "panel-test", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := &service.AuthService{Store: st, Issuer: issuer}

	router := NewRouter("test", st, logger)
	router.AuthService = auth
	router.InviteService = &service.InviteService{Store: st, BaseURL: "http://localhost:3000"}
	router.UserService = &service.UserService{Store: st}
	router.ProjectService = &service.ProjectService{Store: st}
	router.ApplyRoutes()

	return &testEnv{router: router, store: st}
}

func (e *testEnv) seedUser(t *testing.T, email, password string, role domain.Role, status domain.Status) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("valid credentials return a token and user", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw-123456", domain.RoleAdmin, domain.StatusActive)

		rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email: "admin@example.com", Password: "pw-123456",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeJSON[LoginResponse](t, rec)
		require.Equal(t, "admin@example.com", resp.User.Email)
		require.Equal(t, "ADMIN", resp.User.Role)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "user@example.com", "right", domain.RoleStaff, domain.StatusActive)

		recUnknown := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email: "ghost@example.com", Password: "x",
		})
		recWrong := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email: "user@example.com", Password: "wrong",
		})

		require.Equal(t, http.StatusUnauthorized, recUnknown.Code)
		require.Equal(t, http.StatusUnauthorized, recWrong.Code)
		require.JSONEq(t, recUnknown.Body.String(), recWrong.Body.String())
	})

	t.Run("deactivated account gets a distinct message", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "gone@example.com", "pw", domain.RoleStaff, domain.StatusInactive)

		rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
			Email: "gone@example.com", Password: "pw",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		resp := decodeJSON[ErrorResponse](t, rec)
		require.Equal(t, "account_deactivated", resp.Error)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthnMiddleware(t *testing.T) {
	t.Run("missing and garbage tokens are rejected", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/auth/me", "not-a-token", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid session returns the caller's profile", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "me@example.com", "pw", domain.RoleStaff, domain.StatusActive)
		token := env.login(t, "me@example.com", "pw")

		rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeJSON[UserResponse](t, rec)
		require.Equal(t, "me@example.com", resp.Email)
	})

	t.Run("deactivation invalidates a live session", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.seedUser(t, "victim@example.com", "pw", domain.RoleStaff, domain.StatusActive)
		token := env.login(t, "victim@example.com", "pw")

		require.NoError(t, env.store.Users().UpdateUserStatus(context.Background(), user.ID, domain.StatusInactive, time.Now().UTC()))

		rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		resp := decodeJSON[ErrorResponse](t, rec)
		require.Equal(t, "Account is deactivated", resp.ErrorDescription)
	})
}

func TestRoleGating(t *testing.T) {
	t.Run("staff cannot reach admin endpoints", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "staff@example.com", "pw", domain.RoleStaff, domain.StatusActive)
		token := env.login(t, "staff@example.com", "pw")

		for _, probe := range []struct{ method, path string }{
			{http.MethodGet, "/api/users"},
			{http.MethodPost, "/api/invites"},
			{http.MethodPost, "/api/projects"},
		} {
			rec := env.do(t, probe.method, probe.path, token, map[string]string{})
			require.Equal(t, http.StatusForbidden, rec.Code, "%s %s", probe.method, probe.path)
		}
	})

	t.Run("managers can write projects but not manage users", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "mgr@example.com", "pw", domain.RoleManager, domain.StatusActive)
		token := env.login(t, "mgr@example.com", "pw")

		rec := env.do(t, http.MethodPost, "/api/projects", token, ProjectRequest{Name: "Rollout"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("a demotion takes effect on the next request", func(t *testing.T) {
		env := newTestEnv(t)
		admin := env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		token := env.login(t, "admin@example.com", "pw")

		rec := env.do(t, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		require.NoError(t, env.store.Users().UpdateUserRole(context.Background(), admin.ID, domain.RoleStaff, time.Now().UTC()))

		rec = env.do(t, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestInviteFlow(t *testing.T) {
	t.Run("full invite lifecycle over HTTP", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		adminToken := env.login(t, "admin@example.com", "pw")

		// 1. Admin mints an invite.
		rec := env.do(t, http.MethodPost, "/api/invites", adminToken, InviteCreateRequest{
			Email: "new@example.com", Role: "MANAGER",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decodeJSON[InviteCreateResponse](t, rec)
		require.Contains(t, created.InviteLink, "http://localhost:3000/register?token=")

		token := created.InviteLink[len("http://localhost:3000/register?token="):]

		// 2. The invitee verifies the token.
		rec = env.do(t, http.MethodGet, "/api/invites/verify?token="+token, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		verified := decodeJSON[InviteVerifyResponse](t, rec)
		require.Equal(t, "new@example.com", verified.Email)
		require.Equal(t, "MANAGER", verified.Role)

		// 3. The invitee registers and is logged straight in.
		rec = env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Token: token, Name: "New Manager", Password: "their-password",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		registered := decodeJSON[LoginResponse](t, rec)
		require.NotEmpty(t, registered.Token)
		require.Equal(t, "MANAGER", registered.User.Role)

		// 4. A second redemption fails.
		rec = env.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
			Token: token, Name: "Impostor", Password: "other",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		errResp := decodeJSON[ErrorResponse](t, rec)
		require.Equal(t, "invite_used", errResp.Error)
	})

	t.Run("duplicate invite for the same email conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		adminToken := env.login(t, "admin@example.com", "pw")

		rec := env.do(t, http.MethodPost, "/api/invites", adminToken, InviteCreateRequest{
			Email: "dup@example.com", Role: "STAFF",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = env.do(t, http.MethodPost, "/api/invites", adminToken, InviteCreateRequest{
			Email: "dup@example.com", Role: "STAFF",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		errResp := decodeJSON[ErrorResponse](t, rec)
		require.Equal(t, "conflict", errResp.Error)
	})

	t.Run("unknown token verification is a 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/invites/verify?token=bogus", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserAdminEndpoints(t *testing.T) {
	t.Run("role and status updates round-trip", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		staff := env.seedUser(t, "staff@example.com", "pw", domain.RoleStaff, domain.StatusActive)
		token := env.login(t, "admin@example.com", "pw")

		rec := env.do(t, http.MethodPatch, "/api/users/"+staff.ID+"/role", token, UpdateRoleRequest{Role: "MANAGER"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "MANAGER", decodeJSON[UserResponse](t, rec).Role)

		rec = env.do(t, http.MethodPatch, "/api/users/"+staff.ID+"/status", token, UpdateStatusRequest{Status: "INACTIVE"})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "INACTIVE", decodeJSON[UserResponse](t, rec).Status)
	})

	t.Run("admins cannot demote themselves", func(t *testing.T) {
		env := newTestEnv(t)
		admin := env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		token := env.login(t, "admin@example.com", "pw")

		rec := env.do(t, http.MethodPatch, "/api/users/"+admin.ID+"/role", token, UpdateRoleRequest{Role: "STAFF"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list never leaks password hashes", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		token := env.login(t, "admin@example.com", "pw")

		rec := env.do(t, http.MethodGet, "/api/users", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotContains(t, rec.Body.String(), "argon2")
		require.NotContains(t, rec.Body.String(), "password_hash")
	})
}

func TestProjectEndpoints(t *testing.T) {
	t.Run("create, update, delete lifecycle", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		token := env.login(t, "admin@example.com", "pw")

		rec := env.do(t, http.MethodPost, "/api/projects", token, ProjectRequest{
			Name: "Website Refresh", Description: "Rebuild the site",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		project := decodeJSON[ProjectResponse](t, rec)
		require.Equal(t, "admin@example.com", project.Creator.Email)

		rec = env.do(t, http.MethodPut, "/api/projects/"+project.ID, token, ProjectRequest{
			Name: "Website Refresh", Status: "ARCHIVED",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ARCHIVED", decodeJSON[ProjectResponse](t, rec).Status)

		rec = env.do(t, http.MethodDelete, "/api/projects/"+project.ID, token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/projects/"+project.ID, token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)

		// Editing or re-deleting a deleted project is a conflict, not a 404.
		rec = env.do(t, http.MethodPut, "/api/projects/"+project.ID, token, ProjectRequest{Name: "Back"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "conflict", decodeJSON[ErrorResponse](t, rec).Error)

		rec = env.do(t, http.MethodDelete, "/api/projects/"+project.ID, token, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "conflict", decodeJSON[ErrorResponse](t, rec).Error)
	})

	t.Run("staff can read but not write", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser(t, "admin@example.com", "pw", domain.RoleAdmin, domain.StatusActive)
		env.seedUser(t, "staff@example.com", "pw", domain.RoleStaff, domain.StatusActive)
		adminToken := env.login(t, "admin@example.com", "pw")
		staffToken := env.login(t, "staff@example.com", "pw")

		rec := env.do(t, http.MethodPost, "/api/projects", adminToken, ProjectRequest{Name: "Visible"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/projects", staffToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decodeJSON[[]ProjectResponse](t, rec), 1)

		rec = env.do(t, http.MethodPost, "/api/projects", staffToken, ProjectRequest{Name: "Nope"})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON[HealthResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSON[HealthResponse](t, rec)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "ok", resp.Checks.Database)
}
