package routegroups

import (
	"github.com/go-chi/chi/v5"

	"oficri-sdt/api/handlers"
	"oficri-sdt/core/rbac"
)

func RegisterLogsAndDashboard(apiRouter chi.Router, g Guards, logs *handlers.LogsHandler, dashboard *handlers.DashboardHandler) {
	apiRouter.Route("/logs", func(logsRouter chi.Router) {
		logsRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermAudit, logs.List))
		logsRouter.MethodFunc("GET", "/filesystem", g.SessionPerm(rbac.PermAudit, logs.Filesystem))
		logsRouter.MethodFunc("GET", "/security-stats", g.SessionPerm(rbac.PermAudit, logs.SecurityStats))
		logsRouter.MethodFunc("POST", "/export", g.SessionPerm(rbac.PermExport, logs.Export))
		logsRouter.MethodFunc("GET", "/export/{nombre}", g.SessionPerm(rbac.PermExport, logs.Download))
	})

	apiRouter.MethodFunc("GET", "/dashboard/stats", g.SessionPerm(rbac.PermView, dashboard.Stats))
}
