package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"oficri-sdt/core/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteMigrations mirrors migrations/0001_init.sql in sqlite dialect. The
// test suites run against sqlite; production runs goose on postgres.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY,
		nombre TEXT UNIQUE NOT NULL,
		mask INTEGER NOT NULL
	);`,
	`INSERT OR IGNORE INTO roles (id, nombre, mask) VALUES
		(1, 'ADMIN', 255),
		(2, 'MESA_PARTES', 91),
		(3, 'AREA_RESPONSABLE', 26);`,
	`CREATE TABLE IF NOT EXISTS areas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre TEXT NOT NULL,
		codigo TEXT UNIQUE NOT NULL,
		tipo TEXT NOT NULL DEFAULT '',
		activo INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS usuarios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cip TEXT UNIQUE NOT NULL,
		nombres TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		rol_id INTEGER NOT NULL,
		area_id INTEGER NOT NULL,
		bloqueado INTEGER NOT NULL DEFAULT 0,
		intentos_fallidos INTEGER NOT NULL DEFAULT 0,
		ultimo_acceso TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(rol_id) REFERENCES roles(id),
		FOREIGN KEY(area_id) REFERENCES areas(id)
	);`,
	`CREATE TABLE IF NOT EXISTS sesiones (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		cip TEXT NOT NULL,
		rol_id INTEGER NOT NULL,
		area_id INTEGER NOT NULL,
		csrf_token TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		FOREIGN KEY(user_id) REFERENCES usuarios(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS documentos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nro_registro TEXT UNIQUE NOT NULL,
		nro_oficio TEXT NOT NULL DEFAULT '',
		fecha_documento TIMESTAMP NOT NULL,
		procedencia TEXT NOT NULL DEFAULT '',
		contenido TEXT NOT NULL DEFAULT '',
		area_actual_id INTEGER NOT NULL,
		estado TEXT NOT NULL,
		created_by INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(area_actual_id) REFERENCES areas(id),
		FOREIGN KEY(created_by) REFERENCES usuarios(id)
	);`,
	`CREATE TABLE IF NOT EXISTS derivaciones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		documento_id INTEGER NOT NULL,
		area_origen_id INTEGER NOT NULL,
		area_destino_id INTEGER NOT NULL,
		derivado_por INTEGER NOT NULL,
		derivado_en TIMESTAMP NOT NULL,
		recibido_por INTEGER,
		recibido_en TIMESTAMP,
		estado TEXT NOT NULL,
		observacion TEXT NOT NULL DEFAULT '',
		urgente INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(documento_id) REFERENCES documentos(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_derivaciones_documento ON derivaciones(documento_id, derivado_en);`,
}

const sqliteLogTableDDL = `CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	event_at TIMESTAMP NOT NULL,
	user_id INTEGER,
	success INTEGER,
	ip TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL DEFAULT ''
);`

func ApplyMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	if db.Driver() == DriverPostgres {
		return applyGooseMigrations(ctx, db, logger)
	}
	return applySQLiteMigrations(ctx, db, logger)
}

func applyGooseMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.Raw(), "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	if logger != nil {
		logger.Printf("postgres migrations applied")
	}
	return nil
}

func applySQLiteMigrations(ctx context.Context, db *DB, logger *utils.Logger) error {
	for i, stmt := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	for _, table := range AllLogTables() {
		stmt := fmt.Sprintf(sqliteLogTableDDL, table.SQLName())
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite log table %s failed: %w", table.SQLName(), err)
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_event_at ON %s(event_at);", table.SQLName(), table.SQLName())
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	if logger != nil {
		logger.Printf("sqlite migrations applied")
	}
	return nil
}
