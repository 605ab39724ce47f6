package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
)

func TestRequirePermissionDeniesMissingBit(t *testing.T) {
	s := &Server{policy: rbac.DefaultPolicy()}
	handler := s.requirePermission(rbac.PermDelete)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodDelete, "/api/areas/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, &store.SessionRecord{
		CIP:    "12345678",
		RoleID: rbac.RoleAreaResponsable,
	}))
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
}

type recordingLogStore struct {
	store.LogStore
	appends []struct {
		table store.LogTable
		rec   store.LogRecord
	}
}

func (r *recordingLogStore) Append(_ context.Context, table store.LogTable, rec *store.LogRecord) error {
	r.appends = append(r.appends, struct {
		table store.LogTable
		rec   store.LogRecord
	}{table, *rec})
	return nil
}

func TestRequirePermissionDenialWritesIntrusionLog(t *testing.T) {
	logs := &recordingLogStore{}
	s := &Server{policy: rbac.DefaultPolicy(), logs: logs}
	handler := s.requirePermission(rbac.PermAudit)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.RemoteAddr = "192.0.2.7:40000"
	req = req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, &store.SessionRecord{
		UserID: 42,
		CIP:    "12345678",
		RoleID: rbac.RoleMesaPartes,
	}))
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
	if len(logs.appends) != 1 {
		t.Fatalf("expected 1 intrusion append, got %d", len(logs.appends))
	}
	got := logs.appends[0]
	if got.table != store.LogTableIntrusion {
		t.Fatalf("expected intrusion table, got %s", got.table.SQLName())
	}
	if got.rec.EventType != "permiso.denegado" {
		t.Fatalf("unexpected event type %q", got.rec.EventType)
	}
	if got.rec.UserID == nil || *got.rec.UserID != 42 {
		t.Fatalf("expected denial attributed to user 42, got %+v", got.rec.UserID)
	}
}

func TestRequirePermissionAllowsAdmin(t *testing.T) {
	s := &Server{policy: rbac.DefaultPolicy()}
	handler := s.requirePermission(rbac.PermDelete)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodDelete, "/api/areas/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, &store.SessionRecord{
		CIP:    "87654321",
		RoleID: rbac.RoleAdmin,
	}))
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", rr.Code)
	}
}

func TestRequirePermissionWithoutSessionIsUnauthorized(t *testing.T) {
	s := &Server{policy: rbac.DefaultPolicy()}
	handler := s.requirePermission(rbac.PermView)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/documentos", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
}

func TestClientIPUsesNearestUntrustedXFFHop(t *testing.T) {
	s := &Server{
		cfg: &config.AppConfig{
			Security: config.SecurityConfig{
				TrustedProxies: []string{"10.0.0.10", "10.0.0.11"},
			},
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.10:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.11")
	if got := s.clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected client ip 203.0.113.9, got %s", got)
	}
}

func TestClientIPIgnoresXFFForUntrustedRemote(t *testing.T) {
	s := &Server{
		cfg: &config.AppConfig{
			Security: config.SecurityConfig{
				TrustedProxies: []string{"10.0.0.10"},
			},
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.RemoteAddr = "192.168.1.20:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.10")
	if got := s.clientIP(req); got != "192.168.1.20" {
		t.Fatalf("expected remote addr ip for untrusted source, got %s", got)
	}
}

func TestClientIPInvalidXFFFallsBackToRealIP(t *testing.T) {
	s := &Server{
		cfg: &config.AppConfig{
			Security: config.SecurityConfig{
				TrustedProxies: []string{"10.0.0.10"},
			},
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.10:54321"
	req.Header.Set("X-Forwarded-For", "garbage,not-an-ip")
	req.Header.Set("X-Real-IP", "198.51.100.8")
	if got := s.clientIP(req); got != "198.51.100.8" {
		t.Fatalf("expected fallback to valid X-Real-IP, got %s", got)
	}
}

func TestLimiterExhaustsAndRefills(t *testing.T) {
	l := newLimiter(2, time.Minute)
	if !l.allow("k") || !l.allow("k") {
		t.Fatalf("expected first two attempts to pass")
	}
	if l.allow("k") {
		t.Fatalf("expected third attempt to be throttled")
	}
	// Another key has its own bucket.
	if !l.allow("other") {
		t.Fatalf("expected independent bucket per key")
	}
	l.mu.Lock()
	l.buckets["k"].last = time.Now().Add(-2 * time.Minute)
	l.mu.Unlock()
	if !l.allow("k") {
		t.Fatalf("expected bucket to refill after the window")
	}
}

func TestSessionActivityThrottlesUpdates(t *testing.T) {
	sa := newSessionActivity()
	now := time.Now()
	if !sa.shouldUpdate("s1", now, 30*time.Second) {
		t.Fatalf("first touch must update")
	}
	if sa.shouldUpdate("s1", now.Add(5*time.Second), 30*time.Second) {
		t.Fatalf("touch within interval must not update")
	}
	if !sa.shouldUpdate("s1", now.Add(31*time.Second), 30*time.Second) {
		t.Fatalf("touch past interval must update")
	}
}
