package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type AreasHandler struct {
	areas  store.AreasStore
	logs   store.LogStore
	logger *utils.Logger
}

func NewAreasHandler(areas store.AreasStore, logs store.LogStore, logger *utils.Logger) *AreasHandler {
	return &AreasHandler{areas: areas, logs: logs, logger: logger}
}

type areaPayload struct {
	Name string `json:"nombre"`
	Code string `json:"codigo"`
	Type string `json:"tipo"`
}

func (h *AreasHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("incluirInactivas") == "true"
	areas, err := h.areas.List(r.Context(), includeInactive)
	if err != nil {
		h.serverError(w, "areas list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas})
}

func (h *AreasHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	area, err := h.areas.Get(r.Context(), id)
	if err != nil {
		h.serverError(w, "areas get", err)
		return
	}
	if area == nil {
		writeError(w, http.StatusNotFound, "area no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (h *AreasHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p areaPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	if p.Name == "" || p.Code == "" {
		writeError(w, http.StatusBadRequest, "nombre y codigo requeridos")
		return
	}
	area := &store.Area{Name: p.Name, Code: p.Code, Type: strings.TrimSpace(p.Type), Active: true}
	id, err := h.areas.Create(r.Context(), area)
	if err != nil {
		h.serverError(w, "areas create", err)
		return
	}
	area.ID = id
	h.audit(r.Context(), r, "area.creada", "area_id="+strconv.FormatInt(id, 10)+" codigo="+p.Code)
	writeJSON(w, http.StatusCreated, area)
}

func (h *AreasHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	area, err := h.areas.Get(r.Context(), id)
	if err != nil {
		h.serverError(w, "areas update lookup", err)
		return
	}
	if area == nil {
		writeError(w, http.StatusNotFound, "area no encontrada")
		return
	}
	var p areaPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	if p.Name == "" || p.Code == "" {
		writeError(w, http.StatusBadRequest, "nombre y codigo requeridos")
		return
	}
	area.Name = p.Name
	area.Code = p.Code
	area.Type = strings.TrimSpace(p.Type)
	if err := h.areas.Update(r.Context(), area); err != nil {
		h.serverError(w, "areas update", err)
		return
	}
	h.audit(r.Context(), r, "area.actualizada", "area_id="+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusOK, area)
}

// Deactivate soft deletes. Documents routed to the area keep their
// history; the area just stops being a valid derivation destination.
func (h *AreasHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "area.desactivada")
}

func (h *AreasHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "area.activada")
}

func (h *AreasHandler) setActive(w http.ResponseWriter, r *http.Request, active bool, event string) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	area, err := h.areas.Get(r.Context(), id)
	if err != nil {
		h.serverError(w, "areas set active lookup", err)
		return
	}
	if area == nil {
		writeError(w, http.StatusNotFound, "area no encontrada")
		return
	}
	if err := h.areas.SetActive(r.Context(), id, active); err != nil {
		h.serverError(w, "areas set active", err)
		return
	}
	h.audit(r.Context(), r, event, "area_id="+strconv.FormatInt(id, 10)+" codigo="+area.Code)
	area.Active = active
	writeJSON(w, http.StatusOK, area)
}

func (h *AreasHandler) serverError(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Errorf("%s: %v", op, err)
	}
	writeError(w, http.StatusInternalServerError, "error interno")
}

func (h *AreasHandler) audit(ctx context.Context, r *http.Request, eventType, details string) {
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
	_ = h.logs.Append(ctx, store.LogTableArea, rec)
}
