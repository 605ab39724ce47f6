package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Document estados. COMPLETADO, ARCHIVADO and RECHAZADO are terminal: no
// transition is defined out of them.
const (
	DocStatusPendiente  = "PENDIENTE"
	DocStatusRecibido   = "RECIBIDO"
	DocStatusEnProceso  = "EN_PROCESO"
	DocStatusCompletado = "COMPLETADO"
	DocStatusArchivado  = "ARCHIVADO"
	DocStatusRechazado  = "RECHAZADO"
)

const (
	DerivStatusPendiente  = "PENDIENTE"
	DerivStatusCompletado = "COMPLETADO"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrTerminalStatus  = errors.New("document in terminal status")
	ErrAlreadyReceived = errors.New("derivation already received")
)

func IsTerminalStatus(status string) bool {
	switch status {
	case DocStatusCompletado, DocStatusArchivado, DocStatusRechazado:
		return true
	}
	return false
}

type Document struct {
	ID             int64     `json:"id"`
	RegistryNumber string    `json:"nro_registro"`
	OfficeNumber   string    `json:"nro_oficio"`
	Date           time.Time `json:"fecha_documento"`
	Origin         string    `json:"procedencia"`
	Content        string    `json:"contenido"`
	CurrentAreaID  int64     `json:"area_actual_id"`
	Status         string    `json:"estado"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Derivation struct {
	ID                int64      `json:"id"`
	DocumentID        int64      `json:"documento_id"`
	OriginAreaID      int64      `json:"area_origen_id"`
	DestinationAreaID int64      `json:"area_destino_id"`
	DerivedBy         int64      `json:"derivado_por"`
	DerivedAt         time.Time  `json:"derivado_en"`
	ReceivedBy        *int64     `json:"recibido_por,omitempty"`
	ReceivedAt        *time.Time `json:"recibido_en,omitempty"`
	Status            string     `json:"estado"`
	Observation       string     `json:"observacion"`
	Urgent            bool       `json:"urgente"`
}

type DocumentFilter struct {
	AreaID int64
	Status string
	Search string
	Limit  int
	Offset int
}

type DocumentsStore interface {
	Create(ctx context.Context, d *Document) (int64, error)
	Update(ctx context.Context, d *Document) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Get(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]Document, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Derive inserts a derivation row and moves the document to the
	// destination area in one transaction, re-checking status under the
	// row lock so two concurrent derivations cannot both apply.
	Derive(ctx context.Context, docID, destAreaID, actorID int64, observation string, urgent bool) (*Derivation, error)
	ReceiveDerivation(ctx context.Context, derivationID, userID int64) error
	GetDerivation(ctx context.Context, id int64) (*Derivation, error)
	History(ctx context.Context, docID int64) ([]Derivation, error)
}

type documentsStore struct {
	db *DB
}

func NewDocumentsStore(db *DB) DocumentsStore {
	return &documentsStore{db: db}
}

const documentColumns = `id, nro_registro, nro_oficio, fecha_documento, procedencia, contenido, area_actual_id, estado, created_by, created_at, updated_at`

func (s *documentsStore) Create(ctx context.Context, d *Document) (int64, error) {
	now := time.Now().UTC()
	if d.Status == "" {
		d.Status = DocStatusRecibido
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documentos(nro_registro, nro_oficio, fecha_documento, procedencia, contenido, area_actual_id, estado, created_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		d.RegistryNumber, d.OfficeNumber, d.Date.UTC(), d.Origin, d.Content, d.CurrentAreaID, d.Status, d.CreatedBy, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	d.ID = id
	d.CreatedAt = now
	d.UpdatedAt = now
	return id, nil
}

func (s *documentsStore) Update(ctx context.Context, d *Document) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documentos SET nro_oficio=?, fecha_documento=?, procedencia=?, contenido=?, updated_at=?
		WHERE id=?`,
		d.OfficeNumber, d.Date.UTC(), d.Origin, d.Content, time.Now().UTC(), d.ID)
	return err
}

func (s *documentsStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documentos SET estado=?, updated_at=? WHERE id=?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *documentsStore) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documentos WHERE id=?`, id)
	var d Document
	if err := scanDocument(row, &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (s *documentsStore) List(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documentos WHERE 1=1`
	args := []any{}
	if filter.AreaID > 0 {
		query += ` AND area_actual_id=?`
		args = append(args, filter.AreaID)
	}
	if filter.Status != "" {
		query += ` AND estado=?`
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		query += ` AND (nro_registro LIKE ? OR nro_oficio LIKE ? OR procedencia LIKE ?)`
		like := "%" + filter.Search + "%"
		args = append(args, like, like, like)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Document
	for rows.Next() {
		var d Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *documentsStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT estado, COUNT(*) FROM documentos GROUP BY estado`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *documentsStore) Derive(ctx context.Context, docID, destAreaID, actorID int64, observation string, urgent bool) (*Derivation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	lock := ""
	if s.db.Driver() == DriverPostgres {
		lock = " FOR UPDATE"
	}
	var status string
	var currentArea int64
	err = tx.QueryRowContext(ctx, `SELECT estado, area_actual_id FROM documentos WHERE id=?`+lock, docID).
		Scan(&status, &currentArea)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if IsTerminalStatus(status) {
		tx.Rollback()
		return nil, ErrTerminalStatus
	}
	now := time.Now().UTC()
	var derivationID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO derivaciones(documento_id, area_origen_id, area_destino_id, derivado_por, derivado_en, estado, observacion, urgente)
		VALUES(?,?,?,?,?,?,?,?) RETURNING id`,
		docID, currentArea, destAreaID, actorID, now, DerivStatusPendiente, observation, urgent).Scan(&derivationID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE documentos SET area_actual_id=?, estado=?, updated_at=? WHERE id=?`,
		destAreaID, DocStatusEnProceso, now, docID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Derivation{
		ID:                derivationID,
		DocumentID:        docID,
		OriginAreaID:      currentArea,
		DestinationAreaID: destAreaID,
		DerivedBy:         actorID,
		DerivedAt:         now,
		Status:            DerivStatusPendiente,
		Observation:       observation,
		Urgent:            urgent,
	}, nil
}

func (s *documentsStore) ReceiveDerivation(ctx context.Context, derivationID, userID int64) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE derivaciones SET recibido_por=?, recibido_en=?, estado=?
		WHERE id=? AND recibido_en IS NULL`,
		userID, now, DerivStatusCompletado, derivationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	existing, err := s.GetDerivation(ctx, derivationID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return ErrAlreadyReceived
}

const derivationColumns = `id, documento_id, area_origen_id, area_destino_id, derivado_por, derivado_en, recibido_por, recibido_en, estado, observacion, urgente`

func (s *documentsStore) GetDerivation(ctx context.Context, id int64) (*Derivation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+derivationColumns+` FROM derivaciones WHERE id=?`, id)
	var d Derivation
	if err := scanDerivation(row, &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (s *documentsStore) History(ctx context.Context, docID int64) ([]Derivation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+derivationColumns+` FROM derivaciones WHERE documento_id=? ORDER BY derivado_en ASC, id ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Derivation{}
	for rows.Next() {
		var d Derivation
		if err := scanDerivation(rows, &d); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func scanDocument(sc rowScanner, d *Document) error {
	return sc.Scan(&d.ID, &d.RegistryNumber, &d.OfficeNumber, &d.Date, &d.Origin, &d.Content, &d.CurrentAreaID, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
}

func scanDerivation(sc rowScanner, d *Derivation) error {
	var receivedBy sql.NullInt64
	var receivedAt sql.NullTime
	if err := sc.Scan(&d.ID, &d.DocumentID, &d.OriginAreaID, &d.DestinationAreaID, &d.DerivedBy, &d.DerivedAt, &receivedBy, &receivedAt, &d.Status, &d.Observation, &d.Urgent); err != nil {
		return err
	}
	if receivedBy.Valid {
		v := receivedBy.Int64
		d.ReceivedBy = &v
	}
	if receivedAt.Valid {
		t := receivedAt.Time
		d.ReceivedAt = &t
	}
	return nil
}
