package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type authEnv struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	sessions store.SessionStore
	logs     store.LogStore
	handler  *AuthHandler
	areaID   int64
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	cfg := &config.AppConfig{
		Pepper:     "pepper",
		CSRFKey:    "csrf-key",
		SessionTTL: time.Hour,
		Security:   config.SecurityConfig{MaxFailedLogins: 3, OnlineWindowSec: 300},
	}
	logger := utils.NewLogger()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "auth.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	logs := store.NewLogStore(db)
	areaID, err := store.NewAreasStore(db).Create(context.Background(), &store.Area{
		Name: "Mesa de Partes", Code: "MP", Active: true,
	})
	if err != nil {
		t.Fatalf("area: %v", err)
	}
	sm := auth.NewSessionManager(sessions, cfg, logger)
	handler := NewAuthHandler(cfg, users, sessions, logs, sm, rbac.DefaultPolicy(), logger)
	return &authEnv{cfg: cfg, users: users, sessions: sessions, logs: logs, handler: handler, areaID: areaID}
}

func (e *authEnv) user(t *testing.T, cip, password string, roleID int64) int64 {
	t.Helper()
	ph := auth.MustHashPassword(password, e.cfg.Pepper)
	id, err := e.users.Create(context.Background(), &store.User{
		CIP: cip, Names: "Perito de Prueba", PasswordHash: ph.Hash, Salt: ph.Salt,
		RoleID: roleID, AreaID: e.areaID,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", cip, err)
	}
	return id
}

func (e *authEnv) login(t *testing.T, cip, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := strings.NewReader(`{"cip":"` + cip + `","password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.RemoteAddr = "192.0.2.10:40000"
	rr := httptest.NewRecorder()
	e.handler.Login(rr, req)
	return rr
}

func TestLoginSuccessSetsSessionAndCSRFCookies(t *testing.T) {
	env := newAuthEnv(t)
	env.user(t, "12345678", "correct-horse", rbac.RoleMesaPartes)

	rr := env.login(t, "12345678", "correct-horse")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var sessionCookie, csrfCookie string
	for _, c := range rr.Result().Cookies() {
		switch c.Name {
		case SessionCookieName:
			sessionCookie = c.Value
		case CSRFCookieName:
			csrfCookie = c.Value
		}
	}
	if sessionCookie == "" || csrfCookie == "" {
		t.Fatalf("expected both cookies to be set")
	}
	var resp struct {
		User struct {
			Permissions int `json:"permisos"`
		} `json:"user"`
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CSRFToken != csrfCookie {
		t.Fatalf("csrf token mismatch between body and cookie")
	}
	if resp.User.Permissions != 91 {
		t.Fatalf("mesa de partes mask = %d, want 91", resp.User.Permissions)
	}
	sr, err := env.sessions.GetSession(context.Background(), sessionCookie)
	if err != nil || sr == nil {
		t.Fatalf("session not persisted: %v", err)
	}
}

func TestLoginFailureAutoBlocksAtThreshold(t *testing.T) {
	env := newAuthEnv(t)
	id := env.user(t, "12345678", "correct-horse", rbac.RoleMesaPartes)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if rr := env.login(t, "12345678", "wrong"); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rr.Code)
		}
	}
	// Third failure crosses the limit and blocks the account.
	if rr := env.login(t, "12345678", "wrong"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on blocking attempt, got %d", rr.Code)
	}
	u, _ := env.users.GetByID(ctx, id)
	if !u.Blocked {
		t.Fatalf("expected user to be blocked")
	}
	// Correct password no longer helps.
	if rr := env.login(t, "12345678", "correct-horse"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for blocked user, got %d", rr.Code)
	}
	intrusions, err := env.logs.List(ctx, store.LogTableIntrusion, store.LogRange{}, 10, 0)
	if err != nil {
		t.Fatalf("list intrusions: %v", err)
	}
	var sawBlock bool
	for _, rec := range intrusions {
		if rec.EventType == "login.bloqueo_automatico" {
			sawBlock = true
		}
	}
	if !sawBlock {
		t.Fatalf("auto block not recorded in intrusion log: %+v", intrusions)
	}
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	env := newAuthEnv(t)
	id := env.user(t, "12345678", "correct-horse", rbac.RoleAdmin)
	ctx := context.Background()

	if rr := env.login(t, "12345678", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := env.login(t, "12345678", "correct-horse"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	u, _ := env.users.GetByID(ctx, id)
	if u.FailedAttempts != 0 {
		t.Fatalf("failure counter not reset: %d", u.FailedAttempts)
	}
	if u.LastAccess == nil {
		t.Fatalf("ultimo_acceso not recorded")
	}
}

func TestLoginUnknownCIPRecordsIntrusion(t *testing.T) {
	env := newAuthEnv(t)
	if rr := env.login(t, "00009999", "whatever"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	n, err := env.logs.Count(context.Background(), store.LogTableIntrusion, store.LogRange{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 intrusion row, got %d", n)
	}
}

func TestLogoutDeletesSessionAndClearsCookies(t *testing.T) {
	env := newAuthEnv(t)
	env.user(t, "12345678", "correct-horse", rbac.RoleAdmin)
	login := env.login(t, "12345678", "correct-horse")
	var sessionID string
	for _, c := range login.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionID = c.Value
		}
	}
	sr, _ := env.sessions.GetSession(context.Background(), sessionID)
	if sr == nil {
		t.Fatalf("session missing after login")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID})
	req = req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, sr))
	rr := httptest.NewRecorder()
	env.handler.Logout(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if sr, _ := env.sessions.GetSession(context.Background(), sessionID); sr != nil {
		t.Fatalf("session must be deleted on logout")
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge != -1 {
			t.Fatalf("session cookie not cleared")
		}
	}
}
