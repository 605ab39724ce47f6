package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	users          store.UsersStore
	sessions       store.SessionStore
	logs           store.LogStore
	sessionManager *auth.SessionManager
	policy         *rbac.Policy
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, sessions store.SessionStore, logs store.LogStore, sm *auth.SessionManager, policy *rbac.Policy, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, sessions: sessions, logs: logs, sessionManager: sm, policy: policy, logger: logger}
}

type sessionUserDTO struct {
	ID          int64  `json:"id"`
	CIP         string `json:"cip"`
	Names       string `json:"nombres"`
	RoleID      int64  `json:"rol_id"`
	RoleName    string `json:"rol"`
	AreaID      int64  `json:"area_id"`
	Permissions int    `json:"permisos"`
}

func (h *AuthHandler) userDTO(u *store.User) sessionUserDTO {
	roleName := ""
	for _, role := range h.policy.Roles() {
		if role.ID == u.RoleID {
			roleName = role.Name
		}
	}
	return sessionUserDTO{
		ID:          u.ID,
		CIP:         u.CIP,
		Names:       u.Names,
		RoleID:      u.RoleID,
		RoleName:    roleName,
		AreaID:      u.AreaID,
		Permissions: h.policy.MaskFor(u.RoleID),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	cred := auth.CredentialsFromContext(r.Context())
	if cred == nil {
		cred = &auth.Credentials{}
		if err := json.NewDecoder(r.Body).Decode(cred); err != nil {
			writeError(w, http.StatusBadRequest, "solicitud invalida")
			return
		}
	}
	cip := strings.TrimSpace(cred.CIP)
	if cip == "" || cred.Password == "" {
		writeError(w, http.StatusBadRequest, "cip y password requeridos")
		return
	}
	user, err := h.users.FindByCIP(r.Context(), cip)
	if err != nil {
		h.serverError(w, "auth login lookup", err)
		return
	}
	ip := remoteIP(r)
	if user == nil {
		h.intrusion(r.Context(), nil, "login.cip_desconocido", ip, "cip="+cip)
		writeError(w, http.StatusUnauthorized, "credenciales invalidas")
		return
	}
	if user.Blocked {
		h.intrusion(r.Context(), &user.ID, "login.usuario_bloqueado", ip, "cip="+cip)
		writeError(w, http.StatusForbidden, "usuario bloqueado")
		return
	}
	if !auth.VerifyPassword(cred.Password, h.cfg.Pepper, user.Salt, user.PasswordHash) {
		attempts, ferr := h.users.RecordLoginFailure(r.Context(), user.ID)
		if ferr != nil && h.logger != nil {
			h.logger.Errorf("auth record failure cip=%s: %v", cip, ferr)
		}
		h.userEvent(r.Context(), user.ID, "login.fallido", false, ip, "intentos="+strconv.Itoa(attempts))
		if attempts >= h.cfg.Security.MaxFailedLogins {
			if berr := h.users.SetBlocked(r.Context(), user.ID, true); berr != nil && h.logger != nil {
				h.logger.Errorf("auth auto block cip=%s: %v", cip, berr)
			}
			h.intrusion(r.Context(), &user.ID, "login.bloqueo_automatico", ip,
				"cip="+cip+" intentos="+strconv.Itoa(attempts))
			if h.logger != nil {
				h.logger.Securityf("auto block cip=%s after %d failed attempts", cip, attempts)
			}
			writeError(w, http.StatusForbidden, "usuario bloqueado por intentos fallidos")
			return
		}
		writeError(w, http.StatusUnauthorized, "credenciales invalidas")
		return
	}

	now := utils.NowUTC()
	if err := h.users.RecordLoginSuccess(r.Context(), user.ID, now); err != nil && h.logger != nil {
		h.logger.Errorf("auth record success cip=%s: %v", cip, err)
	}
	sess, err := h.sessionManager.Create(r.Context(), user, ip, r.UserAgent())
	if err != nil {
		h.serverError(w, "auth session create", err)
		return
	}
	h.userEvent(r.Context(), user.ID, "login.exitoso", true, ip, "cip="+cip)
	sessionCookies(w, r, h.cfg, sess.ID, sess.CSRFToken, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       h.userDTO(user),
		"csrf_token": sess.CSRFToken,
		"expira_en":  sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sr := currentSession(r)
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		_ = h.sessionManager.Delete(r.Context(), cookie.Value)
	}
	if sr != nil {
		h.userEvent(r.Context(), sr.UserID, "logout", true, remoteIP(r), "cip="+sr.CIP)
	}
	clearSessionCookies(w, r, h.cfg)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me returns the authenticated user with the effective permission mask,
// so the UI can hide affordances the role cannot exercise.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sr := currentSession(r)
	if sr == nil {
		writeError(w, http.StatusUnauthorized, "sin sesion")
		return
	}
	user, err := h.users.GetByID(r.Context(), sr.UserID)
	if err != nil {
		h.serverError(w, "auth me lookup", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sin sesion")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      h.userDTO(user),
		"expira_en": sr.ExpiresAt,
	})
}

func (h *AuthHandler) serverError(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Errorf("%s: %v", op, err)
	}
	writeError(w, http.StatusInternalServerError, "error interno")
}

func (h *AuthHandler) userEvent(ctx context.Context, userID int64, eventType string, ok bool, ip, details string) {
	_ = h.logs.Append(ctx, store.LogTableUsuario, &store.LogRecord{
		EventType: eventType,
		UserID:    &userID,
		Success:   &ok,
		IP:        ip,
		Details:   details,
	})
}

func (h *AuthHandler) intrusion(ctx context.Context, userID *int64, eventType, ip, details string) {
	failed := false
	_ = h.logs.Append(ctx, store.LogTableIntrusion, &store.LogRecord{
		EventType: eventType,
		UserID:    userID,
		Success:   &failed,
		IP:        ip,
		Details:   details,
	})
}

func remoteIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
