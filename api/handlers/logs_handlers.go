package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"oficri-sdt/core/logs"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type LogsHandler struct {
	svc    *logs.Service
	logger *utils.Logger
}

func NewLogsHandler(svc *logs.Service, logger *utils.Logger) *LogsHandler {
	return &LogsHandler{svc: svc, logger: logger}
}

// List serves one page of a log table. The tipo parameter must name a
// known table; anything else is rejected instead of being mapped to a
// default, so a typo never silently reads the wrong log.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	table, ok := store.ParseLogTable(strings.TrimSpace(q.Get("tipo")))
	if !ok {
		writeError(w, http.StatusBadRequest, "tipo de log desconocido")
		return
	}
	from, ok := parseDateTime(q.Get("fechaInicio"))
	if !ok {
		writeError(w, http.StatusBadRequest, "fechaInicio invalida")
		return
	}
	to, ok := parseDateTime(q.Get("fechaFin"))
	if !ok {
		writeError(w, http.StatusBadRequest, "fechaFin invalida")
		return
	}
	result, err := h.svc.List(r.Context(), logs.Filter{
		Table:  table,
		From:   from,
		To:     to,
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		h.serviceError(w, "logs list", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *LogsHandler) Filesystem(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("tipo"))
	result, err := h.svc.FileLogs(category, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		h.serviceError(w, "logs filesystem", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type exportPayload struct {
	Tipo        string `json:"tipo"`
	FechaInicio string `json:"fechaInicio"`
	FechaFin    string `json:"fechaFin"`
	Formato     string `json:"formato"`
}

func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	var p exportPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud invalida")
		return
	}
	table, ok := store.ParseLogTable(strings.TrimSpace(p.Tipo))
	if !ok {
		writeError(w, http.StatusBadRequest, "tipo de log desconocido")
		return
	}
	from, ok := parseDateTime(p.FechaInicio)
	if !ok {
		writeError(w, http.StatusBadRequest, "fechaInicio invalida")
		return
	}
	to, ok := parseDateTime(p.FechaFin)
	if !ok {
		writeError(w, http.StatusBadRequest, "fechaFin invalida")
		return
	}
	artifact, err := h.svc.Export(r.Context(), logs.ExportRequest{
		Table:       table,
		From:        from,
		To:          to,
		Format:      p.Formato,
		RequestedBy: actorID(r),
	})
	if err != nil {
		h.serviceError(w, "logs export", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "exportacion generada",
		"exportInfo": artifact,
	})
}

// Download streams a previously exported artifact back to the client.
func (h *LogsHandler) Download(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Download(urlParam(r, "nombre"))
	if err != nil {
		h.serviceError(w, "logs download", err)
		return
	}
	f, err := os.Open(info.Path)
	if err != nil {
		h.serviceError(w, "logs download open", err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.FileName+`"`)
	if _, err := io.Copy(w, f); err != nil && h.logger != nil {
		h.logger.Errorf("logs download stream %s: %v", info.FileName, err)
	}
}

func (h *LogsHandler) SecurityStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := parseDateTime(q.Get("fechaInicio"))
	if !ok {
		writeError(w, http.StatusBadRequest, "fechaInicio invalida")
		return
	}
	to, ok := parseDateTime(q.Get("fechaFin"))
	if !ok {
		writeError(w, http.StatusBadRequest, "fechaFin invalida")
		return
	}
	stats, err := h.svc.Stats(r.Context(), from, to)
	if err != nil {
		h.serviceError(w, "logs stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *LogsHandler) serviceError(w http.ResponseWriter, op string, err error) {
	if de, ok := logs.AsDomainError(err); ok {
		status := http.StatusBadRequest
		if de.Code == logs.ErrorCodeNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, de.Message)
		return
	}
	if h.logger != nil {
		h.logger.Errorf("%s: %v", op, err)
	}
	writeError(w, http.StatusInternalServerError, "error interno")
}
