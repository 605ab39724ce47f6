package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"oficri-sdt/api/handlers"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/store"
)

const (
	sessionActivityInterval = 30 * time.Second

	loginLimiterTTL             = 10 * time.Minute
	loginLimiterCleanupInterval = time.Minute
	loginLimiterMaxBuckets      = 10000
)

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if s.logger != nil {
					s.logger.Exceptionf("PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, string(debug.Stack()))
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.logger != nil {
			s.logger.Printf("REQ %s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogMiddleware records every state-changing API request in the
// peticion log table and mirrors the response line to the app log.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		user := "-"
		var userID *int64
		if v := r.Context().Value(auth.SessionContextKey); v != nil {
			sr := v.(*store.SessionRecord)
			user = sr.CIP
			id := sr.UserID
			userID = &id
		}
		if s.logger != nil {
			s.logger.Printf("RESP %s %s user=%s status=%d dur=%s bytes=%d",
				r.Method, r.URL.Path, user, rec.status, time.Since(start), rec.size)
		}
		if s.logs == nil || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			return
		}
		ok := rec.status < http.StatusBadRequest
		_ = s.logs.Append(r.Context(), store.LogTablePeticion, &store.LogRecord{
			EventType: r.Method + " " + r.URL.Path,
			UserID:    userID,
			Success:   &ok,
			IP:        s.clientIP(r),
			Details:   "status=" + http.StatusText(rec.status),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(handlers.SessionCookieName)
		if err != nil || cookie.Value == "" {
			s.rejectRequest(r, "auth.sin_sesion", "missing cookie")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sr, err := s.sessions.GetSession(r.Context(), cookie.Value)
		if err != nil || sr == nil {
			s.rejectRequest(r, "auth.sesion_invalida", "session not found")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		user, err := s.users.GetByID(r.Context(), sr.UserID)
		if err != nil || user == nil || user.Blocked {
			s.rejectRequest(r, "auth.usuario_bloqueado", "user blocked or missing cip="+sr.CIP)
			_ = s.sessions.DeleteSession(r.Context(), sr.ID)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		// CSRF for state-changing methods.
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			csrfHeader := r.Header.Get("X-CSRF-Token")
			csrfCookieVal, _ := r.Cookie(handlers.CSRFCookieName)
			if csrfHeader == "" || csrfCookieVal == nil || csrfHeader != csrfCookieVal.Value || csrfHeader != sr.CSRFToken {
				s.intrusion(r, "csrf.invalido", sr.UserID)
				http.Error(w, "csrf invalid", http.StatusForbidden)
				return
			}
		}
		ctx := context.WithValue(r.Context(), auth.SessionContextKey, sr)
		now := time.Now().UTC()
		if s.activityTracker == nil || s.activityTracker.shouldUpdate(sr.ID, now, sessionActivityInterval) {
			_ = s.sessions.UpdateActivity(r.Context(), sr.ID, now, s.cfg.EffectiveSessionTTL())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (s *Server) requirePermission(perm int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			val := r.Context().Value(auth.SessionContextKey)
			if val == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sess := val.(*store.SessionRecord)
			if !s.policy.Allowed(sess.RoleID, perm) {
				s.rejectRequest(r, "permiso.denegado", "cip="+sess.CIP)
				s.intrusion(r, "permiso.denegado", sess.UserID)
				if s.logger != nil {
					s.logger.Printf("PERM fail %s %s cip=%s rol=%d need=%d", r.Method, r.URL.Path, sess.CIP, sess.RoleID, perm)
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

func (s *Server) rejectRequest(r *http.Request, eventType, details string) {
	if s.logger != nil {
		s.logger.Rejectf("%s %s %s: %s", eventType, r.Method, r.URL.Path, details)
	}
}

// intrusion records a suspicious request in the intrusion log table and
// the security file log.
func (s *Server) intrusion(r *http.Request, eventType string, userID int64) {
	if s.logger != nil {
		s.logger.Securityf("%s %s %s ip=%s", eventType, r.Method, r.URL.Path, s.clientIP(r))
	}
	if s.logs == nil {
		return
	}
	failed := false
	rec := &store.LogRecord{
		EventType: eventType,
		Success:   &failed,
		IP:        s.clientIP(r),
		Details:   r.Method + " " + r.URL.Path,
	}
	if userID > 0 {
		rec.UserID = &userID
	}
	_ = s.logs.Append(r.Context(), store.LogTableIntrusion, rec)
}

type sessionActivity struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newSessionActivity() *sessionActivity {
	return &sessionActivity{last: map[string]time.Time{}}
}

func (sa *sessionActivity) shouldUpdate(id string, now time.Time, interval time.Duration) bool {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	last, ok := sa.last[id]
	if !ok || now.Sub(last) >= interval {
		sa.last[id] = now
		return true
	}
	return false
}

type requestLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*tokenBucket
	capacity        int
	refill          time.Duration
	ttl             time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	maxBuckets      int
}

type tokenBucket struct {
	tokens   int
	last     time.Time
	lastSeen time.Time
}

func newLimiter(capacity int, refill time.Duration) *requestLimiter {
	return &requestLimiter{
		buckets:         make(map[string]*tokenBucket),
		capacity:        capacity,
		refill:          refill,
		ttl:             loginLimiterTTL,
		cleanupInterval: loginLimiterCleanupInterval,
		maxBuckets:      loginLimiterMaxBuckets,
	}
}

func (l *requestLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.cleanupInterval > 0 && now.Sub(l.lastCleanup) >= l.cleanupInterval {
		l.cleanup(now)
		l.lastCleanup = now
	}
	tb, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &tokenBucket{tokens: l.capacity - 1, last: now, lastSeen: now}
		return true
	}
	tb.lastSeen = now
	if now.Sub(tb.last) >= l.refill {
		tb.tokens = l.capacity
		tb.last = now
	}
	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}

func (l *requestLimiter) cleanup(now time.Time) {
	if l.ttl > 0 {
		for key, tb := range l.buckets {
			if now.Sub(tb.lastSeen) > l.ttl {
				delete(l.buckets, key)
			}
		}
	}
	if l.maxBuckets > 0 && len(l.buckets) > l.maxBuckets {
		for len(l.buckets) > l.maxBuckets {
			oldestKey := ""
			var oldest time.Time
			for key, tb := range l.buckets {
				if oldestKey == "" || tb.lastSeen.Before(oldest) {
					oldestKey = key
					oldest = tb.lastSeen
				}
			}
			if oldestKey == "" {
				break
			}
			delete(l.buckets, oldestKey)
		}
	}
}

// rateLimitLogin throttles the login endpoint per source IP and per
// attempted CIP. Exhausted buckets are logged as intrusion events.
func (s *Server) rateLimitLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := s.clientIP(r)
		var cred auth.Credentials
		body := http.MaxBytesReader(w, r.Body, 64*1024)
		if err := json.NewDecoder(body).Decode(&cred); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if !s.loginLimiter.allow(strings.ToLower(ip)) {
			s.intrusion(r, "login.rate_limit_ip", 0)
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
			return
		}
		cip := strings.ToLower(strings.TrimSpace(cred.CIP))
		if cip != "" && !s.loginLimiter.allow("cip|"+cip) {
			s.intrusion(r, "login.rate_limit_cip", 0)
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
			return
		}
		ctx := context.WithValue(r.Context(), auth.CredentialsContextKey, &cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (s *Server) clientIP(r *http.Request) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	ip = strings.TrimSpace(ip)
	if s == nil || s.cfg == nil || !isTrustedProxy(ip, s.cfg.Security.TrustedProxies) {
		return ip
	}
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if candidate := extractClientIPFromXFF(xff, s.cfg.Security.TrustedProxies); candidate != "" {
			return candidate
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if parsed := net.ParseIP(realIP); parsed != nil {
			return parsed.String()
		}
	}
	return ip
}

func extractClientIPFromXFF(xff string, trusted []string) string {
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(parts[i])
		parsed := net.ParseIP(candidate)
		if parsed == nil {
			continue
		}
		val := parsed.String()
		if !isTrustedProxy(val, trusted) {
			return val
		}
	}
	return ""
}

func isTrustedProxy(ip string, trusted []string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, raw := range trusted {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if strings.Contains(val, "/") {
			if _, block, err := net.ParseCIDR(val); err == nil && block.Contains(parsed) {
				return true
			}
			continue
		}
		if parsed.Equal(net.ParseIP(val)) {
			return true
		}
	}
	return false
}
