package handlers

import (
	"net/http"

	"oficri-sdt/core/dashboard"
	"oficri-sdt/core/utils"
)

type DashboardHandler struct {
	svc    *dashboard.Service
	logger *utils.Logger
}

func NewDashboardHandler(svc *dashboard.Service, logger *utils.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("dashboard stats: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "error interno")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
