package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/store"
)

const (
	SessionCookieName = "oficri_session"
	CSRFCookieName    = "oficri_csrf"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// currentSession returns the authenticated session, or nil when the
// handler is reached without the session middleware (direct tests).
func currentSession(r *http.Request) *store.SessionRecord {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return v.(*store.SessionRecord)
	}
	return nil
}

func actorID(r *http.Request) int64 {
	if sr := currentSession(r); sr != nil {
		return sr.UserID
	}
	return 0
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func pathInt64(r *http.Request, key string) (int64, bool) {
	raw := strings.TrimSpace(urlParam(r, key))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDateTime accepts the date formats the UI sends. Bare dates parse
// at midnight UTC.
func parseDateTime(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func isSecureRequest(r *http.Request, cfg *config.AppConfig) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func sessionCookies(w http.ResponseWriter, r *http.Request, cfg *config.AppConfig, id, csrf string, expires time.Time) {
	secure := isSecureRequest(r, cfg)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    csrf,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func clearSessionCookies(w http.ResponseWriter, r *http.Request, cfg *config.AppConfig) {
	secure := isSecureRequest(r, cfg)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
