package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Area struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Code      string    `json:"codigo"`
	Type      string    `json:"tipo"`
	Active    bool      `json:"activo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AreasStore interface {
	Create(ctx context.Context, a *Area) (int64, error)
	Update(ctx context.Context, a *Area) error
	Get(ctx context.Context, id int64) (*Area, error)
	FindByCode(ctx context.Context, code string) (*Area, error)
	List(ctx context.Context, includeInactive bool) ([]Area, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type areasStore struct {
	db *DB
}

func NewAreasStore(db *DB) AreasStore {
	return &areasStore{db: db}
}

func (s *areasStore) Create(ctx context.Context, a *Area) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO areas(nombre, codigo, tipo, activo, created_at, updated_at)
		VALUES(?,?,?,?,?,?) RETURNING id`,
		a.Name, a.Code, a.Type, a.Active, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return id, nil
}

func (s *areasStore) Update(ctx context.Context, a *Area) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE areas SET nombre=?, codigo=?, tipo=?, updated_at=? WHERE id=?`,
		a.Name, a.Code, a.Type, time.Now().UTC(), a.ID)
	return err
}

func (s *areasStore) Get(ctx context.Context, id int64) (*Area, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, codigo, tipo, activo, created_at, updated_at FROM areas WHERE id=?`, id)
	var a Area
	if err := row.Scan(&a.ID, &a.Name, &a.Code, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *areasStore) FindByCode(ctx context.Context, code string) (*Area, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nombre, codigo, tipo, activo, created_at, updated_at FROM areas WHERE codigo=?`, code)
	var a Area
	if err := row.Scan(&a.ID, &a.Name, &a.Code, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (s *areasStore) List(ctx context.Context, includeInactive bool) ([]Area, error) {
	query := `SELECT id, nombre, codigo, tipo, activo, created_at, updated_at FROM areas`
	if !includeInactive {
		query += ` WHERE activo=?`
	}
	query += ` ORDER BY nombre`
	var (
		rows *sql.Rows
		err  error
	)
	if includeInactive {
		rows, err = s.db.QueryContext(ctx, query)
	} else {
		rows, err = s.db.QueryContext(ctx, query, true)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Area
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.ID, &a.Name, &a.Code, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *areasStore) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE areas SET activo=?, updated_at=? WHERE id=?`,
		active, time.Now().UTC(), id)
	return err
}
