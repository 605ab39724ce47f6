package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"oficri-sdt/core/docs"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type DocsHandler struct {
	svc    *docs.Service
	logger *utils.Logger
}

func NewDocsHandler(svc *docs.Service, logger *utils.Logger) *DocsHandler {
	return &DocsHandler{svc: svc, logger: logger}
}

type documentPayload struct {
	RegistryNumber string `json:"nro_registro"`
	OfficeNumber   string `json:"nro_oficio"`
	Date           string `json:"fecha_documento"`
	Origin         string `json:"procedencia"`
	Content        string `json:"contenido"`
	AreaID         int64  `json:"area_id"`
}

func (h *DocsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p documentPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	date, ok := parseDateTime(p.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "fecha_documento invalida")
		return
	}
	req := docs.CreateRequest{
		RegistryNumber: p.RegistryNumber,
		OfficeNumber:   p.OfficeNumber,
		Origin:         p.Origin,
		Content:        p.Content,
		AreaID:         p.AreaID,
		ActorID:        actorID(r),
	}
	if date != nil {
		req.Date = *date
	}
	doc, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.domainError(w, "docs create", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DocumentFilter{
		Status: strings.TrimSpace(q.Get("estado")),
		Search: strings.TrimSpace(q.Get("q")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if raw := strings.TrimSpace(q.Get("area")); raw != "" {
		areaID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "area invalida")
			return
		}
		filter.AreaID = areaID
	}
	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.domainError(w, "docs list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documentos": list})
}

func (h *DocsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.domainError(w, "docs get", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	var p documentPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	date, ok := parseDateTime(p.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "fecha_documento invalida")
		return
	}
	req := docs.UpdateRequest{
		OfficeNumber: p.OfficeNumber,
		Origin:       p.Origin,
		Content:      p.Content,
		ActorID:      actorID(r),
	}
	if date != nil {
		req.Date = *date
	}
	doc, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.domainError(w, "docs update", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type derivePayload struct {
	DestinationAreaID int64  `json:"area_destino_id"`
	Observation       string `json:"observacion"`
	Urgent            bool   `json:"urgente"`
}

func (h *DocsHandler) Derive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	var p derivePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	deriv, err := h.svc.Derive(r.Context(), id, p.DestinationAreaID, actorID(r), p.Observation, p.Urgent)
	if err != nil {
		h.domainError(w, "docs derive", err)
		return
	}
	writeJSON(w, http.StatusCreated, deriv)
}

func (h *DocsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	history, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.domainError(w, "docs history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"historial": history})
}

func (h *DocsHandler) Receive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	if err := h.svc.Receive(r.Context(), id, actorID(r)); err != nil {
		h.domainError(w, "docs receive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "recibido_en": time.Now().UTC()})
}

func (h *DocsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, store.DocStatusArchivado)
}

func (h *DocsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, store.DocStatusRechazado)
}

func (h *DocsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, store.DocStatusCompletado)
}

func (h *DocsHandler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "id invalido")
		return
	}
	if err := h.svc.SetStatus(r.Context(), id, status, actorID(r)); err != nil {
		h.domainError(w, "docs set status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "estado": status})
}

func (h *DocsHandler) domainError(w http.ResponseWriter, op string, err error) {
	if de, ok := docs.AsDomainError(err); ok {
		writeError(w, domainStatus(de.Code), de.Message)
		return
	}
	if h.logger != nil {
		h.logger.Errorf("%s: %v", op, err)
	}
	writeError(w, http.StatusInternalServerError, "error interno")
}

func domainStatus(code string) int {
	switch code {
	case docs.ErrorCodeNotFound:
		return http.StatusNotFound
	case docs.ErrorCodeValidation:
		return http.StatusBadRequest
	case docs.ErrorCodeConflict:
		return http.StatusConflict
	case docs.ErrorCodeForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
