package store

import (
	"context"
	"database/sql"
	"time"
)

// LogTable enumerates the append-only log tables. The set is closed:
// table selection happens through this type only, never through raw
// request strings, so an unknown category can be rejected up front.
type LogTable string

const (
	LogTableUsuario     LogTable = "usuario"
	LogTableDocumento   LogTable = "documento"
	LogTableArea        LogTable = "area"
	LogTableRol         LogTable = "rol"
	LogTablePermiso     LogTable = "permiso"
	LogTableMesaPartes  LogTable = "mesaPartes"
	LogTableDerivacion  LogTable = "derivacion"
	LogTablePeticion    LogTable = "peticion"
	LogTableIntrusion   LogTable = "intrusion"
	LogTableExportacion LogTable = "exportacion"
	LogTableBackup      LogTable = "backup"
)

var logTableNames = map[LogTable]string{
	LogTableUsuario:     "log_usuario",
	LogTableDocumento:   "log_documento",
	LogTableArea:        "log_area",
	LogTableRol:         "log_rol",
	LogTablePermiso:     "log_permiso",
	LogTableMesaPartes:  "log_mesa_partes",
	LogTableDerivacion:  "log_derivacion",
	LogTablePeticion:    "log_peticion",
	LogTableIntrusion:   "log_intrusion",
	LogTableExportacion: "log_exportacion",
	LogTableBackup:      "log_backup",
}

// ParseLogTable resolves a request-supplied category. Unknown values are
// rejected rather than falling back to a default table.
func ParseLogTable(raw string) (LogTable, bool) {
	t := LogTable(raw)
	_, ok := logTableNames[t]
	return t, ok
}

func (t LogTable) SQLName() string {
	return logTableNames[t]
}

func AllLogTables() []LogTable {
	return []LogTable{
		LogTableUsuario, LogTableDocumento, LogTableArea, LogTableRol,
		LogTablePermiso, LogTableMesaPartes, LogTableDerivacion, LogTablePeticion,
		LogTableIntrusion, LogTableExportacion, LogTableBackup,
	}
}

type LogRecord struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	EventAt   time.Time `json:"event_at"`
	UserID    *int64    `json:"user_id,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Details   string    `json:"details"`
}

type LogRange struct {
	From *time.Time
	To   *time.Time
}

type LogStore interface {
	Append(ctx context.Context, table LogTable, rec *LogRecord) error
	List(ctx context.Context, table LogTable, rng LogRange, limit, offset int) ([]LogRecord, error)
	Count(ctx context.Context, table LogTable, rng LogRange) (int64, error)
	IntrusionsByType(ctx context.Context, rng LogRange) (map[string]int64, error)
}

type logStore struct {
	db *DB
}

func NewLogStore(db *DB) LogStore {
	return &logStore{db: db}
}

func (s *logStore) Append(ctx context.Context, table LogTable, rec *LogRecord) error {
	at := rec.EventAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var userID any
	if rec.UserID != nil {
		userID = *rec.UserID
	}
	var success any
	if rec.Success != nil {
		success = *rec.Success
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table.SQLName()+`(event_type, event_at, user_id, success, ip, details)
		VALUES(?,?,?,?,?,?)`,
		rec.EventType, at.UTC(), userID, success, rec.IP, rec.Details)
	return err
}

func rangeClause(rng LogRange, args []any) (string, []any) {
	clause := ""
	if rng.From != nil {
		clause += ` AND event_at >= ?`
		args = append(args, rng.From.UTC())
	}
	if rng.To != nil {
		clause += ` AND event_at <= ?`
		args = append(args, rng.To.UTC())
	}
	return clause, args
}

func (s *logStore) List(ctx context.Context, table LogTable, rng LogRange, limit, offset int) ([]LogRecord, error) {
	query := `SELECT id, event_type, event_at, user_id, success, ip, details FROM ` + table.SQLName() + ` WHERE 1=1`
	args := []any{}
	var clause string
	clause, args = rangeClause(rng, args)
	query += clause + ` ORDER BY event_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []LogRecord{}
	for rows.Next() {
		var rec LogRecord
		var userID sql.NullInt64
		var success sql.NullBool
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.EventAt, &userID, &success, &rec.IP, &rec.Details); err != nil {
			return nil, err
		}
		if userID.Valid {
			v := userID.Int64
			rec.UserID = &v
		}
		if success.Valid {
			v := success.Bool
			rec.Success = &v
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *logStore) Count(ctx context.Context, table LogTable, rng LogRange) (int64, error) {
	query := `SELECT COUNT(*) FROM ` + table.SQLName() + ` WHERE 1=1`
	args := []any{}
	var clause string
	clause, args = rangeClause(rng, args)
	var n int64
	if err := s.db.QueryRowContext(ctx, query+clause, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *logStore) IntrusionsByType(ctx context.Context, rng LogRange) (map[string]int64, error) {
	query := `SELECT event_type, COUNT(*) FROM ` + LogTableIntrusion.SQLName() + ` WHERE 1=1`
	args := []any{}
	var clause string
	clause, args = rangeClause(rng, args)
	rows, err := s.db.QueryContext(ctx, query+clause+` GROUP BY event_type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var eventType string
		var n int64
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, err
		}
		out[eventType] = n
	}
	return out, rows.Err()
}
