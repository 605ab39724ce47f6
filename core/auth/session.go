package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"oficri-sdt/config"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type Session struct {
	ID         string
	UserID     int64
	CIP        string
	RoleID     int64
	AreaID     int64
	IP         string
	UserAgent  string
	CSRFToken  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

type SessionManager struct {
	store  store.SessionStore
	cfg    *config.AppConfig
	logger *utils.Logger
}

func NewSessionManager(store store.SessionStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{store: store, cfg: cfg, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, user *store.User, ip, userAgent string) (*Session, error) {
	id := uuid.Must(uuid.NewV4()).String()
	var csrf string
	var err error
	if m.cfg.CSRFKey != "" {
		csrf, err = GenerateCSRF(m.cfg.CSRFKey, id)
	} else {
		csrf, err = utils.RandString(32)
	}
	if err != nil {
		return nil, err
	}
	now := utils.NowUTC()
	sess := &Session{
		ID:         id,
		UserID:     user.ID,
		CIP:        user.CIP,
		RoleID:     user.RoleID,
		AreaID:     user.AreaID,
		IP:         ip,
		UserAgent:  userAgent,
		CSRFToken:  csrf,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.store.SaveSession(ctx, &store.SessionRecord{
		ID:         sess.ID,
		UserID:     sess.UserID,
		CIP:        sess.CIP,
		RoleID:     sess.RoleID,
		AreaID:     sess.AreaID,
		IP:         sess.IP,
		UserAgent:  sess.UserAgent,
		CSRFToken:  sess.CSRFToken,
		CreatedAt:  sess.CreatedAt,
		LastSeenAt: sess.LastSeenAt,
		ExpiresAt:  sess.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *SessionManager) Refresh(ctx context.Context, sessID string) error {
	return m.store.UpdateActivity(ctx, sessID, utils.NowUTC(), m.cfg.EffectiveSessionTTL())
}

func (m *SessionManager) Rotate(ctx context.Context, sessID string) (*Session, error) {
	old, err := m.store.GetSession(ctx, sessID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, errors.New("session not found")
	}
	_ = m.store.DeleteSession(ctx, sessID)
	return m.Create(ctx, &store.User{ID: old.UserID, CIP: old.CIP, RoleID: old.RoleID, AreaID: old.AreaID}, old.IP, old.UserAgent)
}

func (m *SessionManager) Delete(ctx context.Context, sessID string) error {
	return m.store.DeleteSession(ctx, sessID)
}
