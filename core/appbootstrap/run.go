// Package appbootstrap loads configuration, opens the database, applies
// migrations and runs the HTTP server together with the background
// workers until the process receives a stop signal.
package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oficri-sdt/api"
	"oficri-sdt/config"
	"oficri-sdt/core/auth"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

const shutdownTimeout = 15 * time.Second

func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := utils.NewFileLogger(cfg.LogsDir)
	if err != nil {
		return err
	}

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}
	if err := ensureDefaultAdmin(ctx, cfg, store.NewUsersStore(db), store.NewAreasStore(db), logger); err != nil {
		return err
	}

	comp, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg, comp.serverDeps, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, w := range comp.workers {
		w.StartWithContext(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, w := range comp.workers {
		if err := w.StopWithContext(shutdownCtx); err != nil {
			logger.Errorf("worker stop: %v", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	logger.Printf("shutdown complete")
	return nil
}

const adminAreaCode = "ADM"

// ensureDefaultAdmin seeds the first administrator so a fresh install
// can log in. It never touches an existing account. The admin needs an
// area up front because usuarios.area_id carries a NOT NULL foreign
// key, so an administrative area is created first on an empty install.
func ensureDefaultAdmin(ctx context.Context, cfg *config.AppConfig, users store.UsersStore, areas store.AreasStore, logger *utils.Logger) error {
	existing, err := users.FindByCIP(ctx, cfg.AdminCIP)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	area, err := areas.FindByCode(ctx, adminAreaCode)
	if err != nil {
		return err
	}
	if area == nil {
		area = &store.Area{
			Name:   "Administracion",
			Code:   adminAreaCode,
			Type:   "ADMINISTRATIVA",
			Active: true,
		}
		if _, err := areas.Create(ctx, area); err != nil {
			return err
		}
		logger.Printf("default area created id=%d codigo=%s", area.ID, area.Code)
	}
	password := cfg.AdminPass
	generated := false
	if password == "" {
		password, err = utils.RandString(16)
		if err != nil {
			return err
		}
		generated = true
	}
	ph, err := auth.HashPassword(password, cfg.Pepper)
	if err != nil {
		return err
	}
	id, err := users.Create(ctx, &store.User{
		CIP:          cfg.AdminCIP,
		Names:        "Administrador",
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		RoleID:       rbac.RoleAdmin,
		AreaID:       area.ID,
	})
	if err != nil {
		return err
	}
	if generated {
		// One-time credential, printed to the console only.
		logger.Printf("default admin created id=%d cip=%s password=%s", id, cfg.AdminCIP, password)
	} else {
		logger.Printf("default admin created id=%d cip=%s", id, cfg.AdminCIP)
	}
	return nil
}
