package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SessionRecord struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	CIP        string    `json:"cip"`
	RoleID     int64     `json:"rol_id"`
	AreaID     int64     `json:"area_id"`
	CSRFToken  string    `json:"-"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type SessionStore interface {
	SaveSession(ctx context.Context, sr *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	UpdateActivity(ctx context.Context, id string, at time.Time, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

type sessionsStore struct {
	db *DB
}

func NewSessionsStore(db *DB) SessionStore {
	return &sessionsStore{db: db}
}

func (s *sessionsStore) SaveSession(ctx context.Context, sr *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sesiones(id, user_id, cip, rol_id, area_id, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		sr.ID, sr.UserID, sr.CIP, sr.RoleID, sr.AreaID, sr.CSRFToken, sr.IP, sr.UserAgent,
		sr.CreatedAt.UTC(), sr.LastSeenAt.UTC(), sr.ExpiresAt.UTC())
	return err
}

func (s *sessionsStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, cip, rol_id, area_id, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at
		FROM sesiones WHERE id=?`, id)
	var sr SessionRecord
	if err := row.Scan(&sr.ID, &sr.UserID, &sr.CIP, &sr.RoleID, &sr.AreaID, &sr.CSRFToken, &sr.IP, &sr.UserAgent, &sr.CreatedAt, &sr.LastSeenAt, &sr.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().UTC().After(sr.ExpiresAt) {
		_ = s.DeleteSession(ctx, id)
		return nil, nil
	}
	return &sr, nil
}

func (s *sessionsStore) UpdateActivity(ctx context.Context, id string, at time.Time, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sesiones SET last_seen_at=?, expires_at=? WHERE id=?`,
		at.UTC(), at.UTC().Add(ttl), id)
	return err
}

func (s *sessionsStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sesiones WHERE id=?`, id)
	return err
}

func (s *sessionsStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sesiones WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *sessionsStore) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sesiones WHERE last_seen_at >= ?`, since.UTC()).Scan(&n)
	return n, err
}
