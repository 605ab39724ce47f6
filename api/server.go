package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/dashboard"
	"oficri-sdt/core/docs"
	"oficri-sdt/core/logs"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

// BackgroundWorker is anything started alongside the HTTP server and
// stopped on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users          store.UsersStore
	Areas          store.AreasStore
	Sessions       store.SessionStore
	Documents      store.DocumentsStore
	Logs           store.LogStore
	DocsSvc        *docs.Service
	LogsSvc        *logs.Service
	DashboardSvc   *dashboard.Service
	SessionManager *auth.SessionManager
	Policy         *rbac.Policy
}

type Server struct {
	cfg             *config.AppConfig
	users           store.UsersStore
	areas           store.AreasStore
	sessions        store.SessionStore
	documents       store.DocumentsStore
	logs            store.LogStore
	docsSvc         *docs.Service
	logsSvc         *logs.Service
	dashboardSvc    *dashboard.Service
	sessionManager  *auth.SessionManager
	policy          *rbac.Policy
	logger          *utils.Logger
	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	ratePerMin := cfg.Security.LoginRatePerMin
	if ratePerMin <= 0 {
		ratePerMin = 5
	}
	return &Server{
		cfg:             cfg,
		users:           deps.Users,
		areas:           deps.Areas,
		sessions:        deps.Sessions,
		documents:       deps.Documents,
		logs:            deps.Logs,
		docsSvc:         deps.DocsSvc,
		logsSvc:         deps.LogsSvc,
		dashboardSvc:    deps.DashboardSvc,
		sessionManager:  deps.SessionManager,
		policy:          deps.Policy,
		logger:          logger,
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(ratePerMin, time.Minute),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)

	handlers := s.newRouteHandlers()
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)
		apiRouter.Use(s.requestLogMiddleware)
		s.registerRoutes(apiRouter, handlers)
	})
	return r
}
