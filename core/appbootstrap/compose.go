package appbootstrap

import (
	"time"

	"oficri-sdt/api"
	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/dashboard"
	"oficri-sdt/core/docs"
	"oficri-sdt/core/logs"
	"oficri-sdt/core/maintenance"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	sessions   store.SessionStore
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	areas := store.NewAreasStore(db)
	sessions := store.NewSessionsStore(db)
	documents := store.NewDocumentsStore(db)
	logStore := store.NewLogStore(db)

	policy := rbac.DefaultPolicy()
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	docsSvc := docs.NewService(documents, areas, logStore, logger)
	logsSvc := logs.NewService(cfg, logStore, logger)

	onlineWindow := time.Duration(cfg.Security.OnlineWindowSec) * time.Second
	cache := dashboard.NewCache(cfg.DashboardCacheTTL())
	dashboardSvc := dashboard.NewService(db, documents, sessions, cache, onlineWindow)

	var workers []api.BackgroundWorker
	if cfg.Maintenance.Enabled {
		workers = append(workers, maintenance.NewScheduler(cfg, sessions, logStore, logger))
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:          users,
			Areas:          areas,
			Sessions:       sessions,
			Documents:      documents,
			Logs:           logStore,
			DocsSvc:        docsSvc,
			LogsSvc:        logsSvc,
			DashboardSvc:   dashboardSvc,
			SessionManager: sessionManager,
			Policy:         policy,
		},
		sessions: sessions,
		workers:  workers,
	}, nil
}
