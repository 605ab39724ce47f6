// Package maintenance runs the recurring housekeeping jobs: expired
// session purge and export artifact retention. Jobs are scheduled with
// cron expressions from configuration.
package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"oficri-sdt/config"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type Scheduler struct {
	cfg      config.MaintenanceConfig
	exports  config.ExportsConfig
	sessions store.SessionStore
	logs     store.LogStore
	logger   *utils.Logger
	cron     *cron.Cron
}

func NewScheduler(cfg *config.AppConfig, sessions store.SessionStore, logs store.LogStore, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg.Maintenance,
		exports:  cfg.Exports,
		sessions: sessions,
		logs:     logs,
		logger:   logger,
	}
}

func (s *Scheduler) StartWithContext(ctx context.Context) {
	if s == nil || !s.cfg.Enabled {
		return
	}
	schedule := strings.TrimSpace(s.cfg.Schedule)
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() { s.RunOnce(ctx, time.Now().UTC()) })
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("maintenance schedule %q invalid: %v", schedule, err)
		}
		return
	}
	s.cron.Start()
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil || s.cron == nil {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	purged := s.purgeSessions(ctx, now)
	removed := s.pruneExports(now)
	s.record(ctx, "mantenimiento.ejecutado",
		"sesiones_purgadas="+strconv.FormatInt(purged, 10)+" exportaciones_eliminadas="+strconv.Itoa(removed))
}

func (s *Scheduler) purgeSessions(ctx context.Context, now time.Time) int64 {
	if s.sessions == nil {
		return 0
	}
	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil && s.logger != nil {
		s.logger.Errorf("session purge failed: %v", err)
	}
	return n
}

func (s *Scheduler) pruneExports(now time.Time) int {
	if s.exports.RetentionDays <= 0 || s.exports.Dir == "" {
		return 0
	}
	cutoff := now.Add(-time.Duration(s.exports.RetentionDays) * 24 * time.Hour)
	entries, err := os.ReadDir(s.exports.Dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "logs_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.exports.Dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}

func (s *Scheduler) record(ctx context.Context, eventType, details string) {
	if s.logs == nil {
		return
	}
	ok := true
	err := s.logs.Append(ctx, store.LogTableBackup, &store.LogRecord{
		EventType: eventType,
		Success:   &ok,
		Details:   details,
	})
	if err != nil && s.logger != nil {
		s.logger.Errorf("maintenance log append failed: %v", err)
	}
}
