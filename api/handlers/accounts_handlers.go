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

type AccountsHandler struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	areas    store.AreasStore
	sessions store.SessionStore
	logs     store.LogStore
	policy   *rbac.Policy
	logger   *utils.Logger
}

func NewAccountsHandler(cfg *config.AppConfig, users store.UsersStore, areas store.AreasStore, sessions store.SessionStore, logs store.LogStore, policy *rbac.Policy, logger *utils.Logger) *AccountsHandler {
	return &AccountsHandler{cfg: cfg, users: users, areas: areas, sessions: sessions, logs: logs, policy: policy, logger: logger}
}

type userPayload struct {
	CIP      string `json:"cip"`
	Names    string `json:"nombres"`
	Password string `json:"password"`
	RoleID   int64  `json:"rol_id"`
	AreaID   int64  `json:"area_id"`
}

func (p *userPayload) validate(requirePassword bool) string {
	p.CIP = strings.TrimSpace(p.CIP)
	p.Names = strings.TrimSpace(p.Names)
	if p.CIP == "" {
		return "cip requerido"
	}
	if p.Names == "" {
		return "nombres requeridos"
	}
	if requirePassword && len(p.Password) < 8 {
		return "password de al menos 8 caracteres"
	}
	return ""
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.serverError(w, "users list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usuarios": users})
}

func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.serverError(w, "users get", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "usuario no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p userPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	if msg := p.validate(true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if h.policy.MaskFor(p.RoleID) == 0 {
		writeError(w, http.StatusBadRequest, "rol desconocido")
		return
	}
	if !h.validArea(w, r, p.AreaID) {
		return
	}
	existing, err := h.users.FindByCIP(r.Context(), p.CIP)
	if err != nil {
		h.serverError(w, "users create lookup", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "cip ya registrado")
		return
	}
	ph, err := auth.HashPassword(p.Password, h.cfg.Pepper)
	if err != nil {
		h.serverError(w, "users create hash", err)
		return
	}
	user := &store.User{
		CIP:          p.CIP,
		Names:        p.Names,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		RoleID:       p.RoleID,
		AreaID:       p.AreaID,
	}
	id, err := h.users.Create(r.Context(), user)
	if err != nil {
		h.serverError(w, "users create", err)
		return
	}
	user.ID = id
	h.audit(r.Context(), r, "usuario.creado", "usuario_id="+strconv.FormatInt(id, 10)+" cip="+p.CIP)
	writeJSON(w, http.StatusCreated, user)
}

func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.serverError(w, "users update lookup", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "usuario no encontrado")
		return
	}
	var p userPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	if msg := p.validate(false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if h.policy.MaskFor(p.RoleID) == 0 {
		writeError(w, http.StatusBadRequest, "rol desconocido")
		return
	}
	if !h.validArea(w, r, p.AreaID) {
		return
	}
	user.Names = p.Names
	user.RoleID = p.RoleID
	user.AreaID = p.AreaID
	if p.Password != "" {
		if len(p.Password) < 8 {
			writeError(w, http.StatusBadRequest, "password de al menos 8 caracteres")
			return
		}
		ph, err := auth.HashPassword(p.Password, h.cfg.Pepper)
		if err != nil {
			h.serverError(w, "users update hash", err)
			return
		}
		user.PasswordHash = ph.Hash
		user.Salt = ph.Salt
	}
	if err := h.users.Update(r.Context(), user); err != nil {
		h.serverError(w, "users update", err)
		return
	}
	h.audit(r.Context(), r, "usuario.actualizado", "usuario_id="+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusOK, user)
}

// Block disables the account and drops its open sessions, so a blocked
// user cannot keep working on a session issued before the block.
func (h *AccountsHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *AccountsHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *AccountsHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.serverError(w, "users block lookup", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "usuario no encontrado")
		return
	}
	if sr := currentSession(r); sr != nil && blocked && sr.UserID == id {
		writeError(w, http.StatusConflict, "no puede bloquearse a si mismo")
		return
	}
	if err := h.users.SetBlocked(r.Context(), id, blocked); err != nil {
		h.serverError(w, "users block", err)
		return
	}
	event := "usuario.desbloqueado"
	if blocked {
		event = "usuario.bloqueado"
	}
	h.audit(r.Context(), r, event, "usuario_id="+strconv.FormatInt(id, 10)+" cip="+user.CIP)
	if h.logger != nil {
		h.logger.Securityf("%s usuario_id=%d cip=%s", event, id, user.CIP)
	}
	user.Blocked = blocked
	if !blocked {
		user.FailedAttempts = 0
	}
	writeJSON(w, http.StatusOK, user)
}

// validArea rejects user payloads naming a missing or inactive area up
// front, instead of letting the insert die on the foreign key.
func (h *AccountsHandler) validArea(w http.ResponseWriter, r *http.Request, areaID int64) bool {
	area, err := h.areas.Get(r.Context(), areaID)
	if err != nil {
		h.serverError(w, "users area lookup", err)
		return false
	}
	if area == nil || !area.Active {
		writeError(w, http.StatusBadRequest, "area invalida o inactiva")
		return false
	}
	return true
}

func (h *AccountsHandler) serverError(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Errorf("%s: %v", op, err)
	}
	writeError(w, http.StatusInternalServerError, "error interno")
}

func (h *AccountsHandler) audit(ctx context.Context, r *http.Request, eventType, details string) {
	ok := true
	rec := &store.LogRecord{
		EventType: eventType,
		Success:   &ok,
		IP:        remoteIP(r),
		Details:   details,
	}
	if sr := currentSession(r); sr != nil {
		rec.UserID = &sr.UserID
	}
	_ = h.logs.Append(ctx, store.LogTableUsuario, rec)
}
