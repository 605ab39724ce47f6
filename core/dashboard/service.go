// Package dashboard aggregates counts for the landing view. The snapshot
// is cached behind an injected Cache value with an explicit TTL, so the
// lifecycle is bounded and tests can drive it directly.
package dashboard

import (
	"context"
	"sync"
	"time"

	"oficri-sdt/core/store"
)

type Stats struct {
	DocumentsByStatus map[string]int64 `json:"documentosPorEstado"`
	TotalDocuments    int64            `json:"totalDocumentos"`
	TotalUsers        int64            `json:"totalUsuarios"`
	TotalAreas        int64            `json:"totalAreas"`
	PendingReceptions int64            `json:"derivacionesPendientes"`
	OnlineUsers       int64            `json:"usuariosEnLinea"`
	GeneratedAt       time.Time        `json:"generadoEn"`
}

// Cache holds one snapshot and when it was fetched.
type Cache struct {
	mu        sync.Mutex
	value     *Stats
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{ttl: ttl, now: time.Now}
}

func (c *Cache) get() (*Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.value, true
}

func (c *Cache) put(v *Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.fetchedAt = c.now()
}

type Service struct {
	db           *store.DB
	docs         store.DocumentsStore
	sessions     store.SessionStore
	cache        *Cache
	onlineWindow time.Duration
}

func NewService(db *store.DB, docs store.DocumentsStore, sessions store.SessionStore, cache *Cache, onlineWindow time.Duration) *Service {
	if onlineWindow <= 0 {
		onlineWindow = 5 * time.Minute
	}
	return &Service{db: db, docs: docs, sessions: sessions, cache: cache, onlineWindow: onlineWindow}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if cached, ok := s.cache.get(); ok {
		return cached, nil
	}
	byStatus, err := s.docs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var totalDocs int64
	for _, n := range byStatus {
		totalDocs += n
	}
	stats := &Stats{
		DocumentsByStatus: byStatus,
		TotalDocuments:    totalDocs,
		GeneratedAt:       time.Now().UTC(),
	}
	s.addCount(ctx, &stats.TotalUsers, `SELECT COUNT(*) FROM usuarios`)
	s.addCount(ctx, &stats.TotalAreas, `SELECT COUNT(*) FROM areas WHERE activo=?`, true)
	s.addCount(ctx, &stats.PendingReceptions, `SELECT COUNT(*) FROM derivaciones WHERE recibido_en IS NULL`)
	if s.sessions != nil {
		if n, err := s.sessions.CountActiveSince(ctx, time.Now().UTC().Add(-s.onlineWindow)); err == nil {
			stats.OnlineUsers = n
		}
	}
	s.cache.put(stats)
	return stats, nil
}

func (s *Service) addCount(ctx context.Context, out *int64, query string, args ...any) {
	if s.db == nil {
		return
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err == nil {
		*out = n
	}
}
