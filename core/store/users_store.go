package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type User struct {
	ID             int64      `json:"id"`
	CIP            string     `json:"cip"`
	Names          string     `json:"nombres"`
	PasswordHash   string     `json:"-"`
	Salt           string     `json:"-"`
	RoleID         int64      `json:"rol_id"`
	AreaID         int64      `json:"area_id"`
	Blocked        bool       `json:"bloqueado"`
	FailedAttempts int        `json:"intentos_fallidos"`
	LastAccess     *time.Time `json:"ultimo_acceso,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type UsersStore interface {
	Create(ctx context.Context, u *User) (int64, error)
	Update(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	FindByCIP(ctx context.Context, cip string) (*User, error)
	List(ctx context.Context) ([]User, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error
	RecordLoginFailure(ctx context.Context, id int64) (int, error)
}

type usersStore struct {
	db *DB
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, cip, nombres, password_hash, salt, rol_id, area_id, bloqueado, intentos_fallidos, ultimo_acceso, created_at, updated_at`

func (s *usersStore) Create(ctx context.Context, u *User) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO usuarios(cip, nombres, password_hash, salt, rol_id, area_id, bloqueado, intentos_fallidos, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,0,?,?) RETURNING id`,
		u.CIP, u.Names, u.PasswordHash, u.Salt, u.RoleID, u.AreaID, u.Blocked, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return id, nil
}

func (s *usersStore) Update(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE usuarios SET nombres=?, rol_id=?, area_id=?, updated_at=? WHERE id=?`,
		u.Names, u.RoleID, u.AreaID, time.Now().UTC(), u.ID)
	return err
}

func (s *usersStore) GetByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) FindByCIP(ctx context.Context, cip string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM usuarios WHERE cip=?`, cip)
	return scanUser(row)
}

func (s *usersStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM usuarios ORDER BY cip`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func (s *usersStore) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE usuarios SET bloqueado=?, intentos_fallidos=0, updated_at=? WHERE id=?`,
		blocked, time.Now().UTC(), id)
	return err
}

func (s *usersStore) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE usuarios SET ultimo_acceso=?, intentos_fallidos=0, updated_at=? WHERE id=?`,
		at.UTC(), time.Now().UTC(), id)
	return err
}

func (s *usersStore) RecordLoginFailure(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE usuarios SET intentos_fallidos=intentos_fallidos+1, updated_at=?
		WHERE id=? RETURNING intentos_fallidos`,
		time.Now().UTC(), id).Scan(&attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*User, error) {
	u, err := scanUserFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func scanUserRows(rows *sql.Rows) (*User, error) {
	return scanUserFrom(rows)
}

func scanUserFrom(sc rowScanner) (*User, error) {
	var u User
	var last sql.NullTime
	if err := sc.Scan(&u.ID, &u.CIP, &u.Names, &u.PasswordHash, &u.Salt, &u.RoleID, &u.AreaID, &u.Blocked, &u.FailedAttempts, &last, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		u.LastAccess = &t
	}
	return &u, nil
}
