package api

import (
	"github.com/go-chi/chi/v5"

	"oficri-sdt/api/handlers"
	"oficri-sdt/api/routegroups"
)

type routeHandlers struct {
	auth      *handlers.AuthHandler
	accounts  *handlers.AccountsHandler
	areas     *handlers.AreasHandler
	docs      *handlers.DocsHandler
	logs      *handlers.LogsHandler
	dashboard *handlers.DashboardHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:      handlers.NewAuthHandler(s.cfg, s.users, s.sessions, s.logs, s.sessionManager, s.policy, s.logger),
		accounts:  handlers.NewAccountsHandler(s.cfg, s.users, s.areas, s.sessions, s.logs, s.policy, s.logger),
		areas:     handlers.NewAreasHandler(s.areas, s.logs, s.logger),
		docs:      handlers.NewDocsHandler(s.docsSvc, s.logger),
		logs:      handlers.NewLogsHandler(s.logsSvc, s.logger),
		dashboard: handlers.NewDashboardHandler(s.dashboardSvc, s.logger),
	}
}

func (s *Server) registerRoutes(apiRouter chi.Router, h routeHandlers) {
	g := routegroups.Guards{
		WithSession:       s.withSession,
		RequirePermission: s.requirePermission,
	}

	apiRouter.Route("/auth", func(authRouter chi.Router) {
		authRouter.MethodFunc("POST", "/login", s.rateLimitLogin(h.auth.Login))
		authRouter.MethodFunc("POST", "/logout", s.withSession(h.auth.Logout))
		authRouter.MethodFunc("GET", "/me", s.withSession(h.auth.Me))
	})

	routegroups.RegisterAccounts(apiRouter, g, h.accounts)
	routegroups.RegisterAreas(apiRouter, g, h.areas)
	routegroups.RegisterDocumentos(apiRouter, g, h.docs)
	routegroups.RegisterLogsAndDashboard(apiRouter, g, h.logs, h.dashboard)
}
