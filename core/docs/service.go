// Package docs implements document intake and inter-area derivation. A
// derivation moves a document from its current area to a destination
// area; the insert of the history row and the update of the document are
// one transaction so concurrent derivations cannot both apply.
package docs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

const (
	AuditDocCreated    = "documento.creado"
	AuditDocUpdated    = "documento.actualizado"
	AuditDocStatusSet  = "documento.estado"
	AuditDocDerived    = "derivacion.creada"
	AuditDerivReceived = "derivacion.recibida"
)

type Service struct {
	docs   store.DocumentsStore
	areas  store.AreasStore
	logs   store.LogStore
	logger *utils.Logger
}

func NewService(docs store.DocumentsStore, areas store.AreasStore, logs store.LogStore, logger *utils.Logger) *Service {
	return &Service{docs: docs, areas: areas, logs: logs, logger: logger}
}

type CreateRequest struct {
	RegistryNumber string
	OfficeNumber   string
	Date           time.Time
	Origin         string
	Content        string
	AreaID         int64
	ActorID        int64
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Document, error) {
	if strings.TrimSpace(req.RegistryNumber) == "" {
		return nil, NewDomainError(ErrorCodeValidation, "nro_registro requerido")
	}
	area, err := s.areas.Get(ctx, req.AreaID)
	if err != nil {
		return nil, err
	}
	if area == nil || !area.Active {
		return nil, NewDomainError(ErrorCodeValidation, "area destino invalida o inactiva")
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}
	doc := &store.Document{
		RegistryNumber: strings.TrimSpace(req.RegistryNumber),
		OfficeNumber:   strings.TrimSpace(req.OfficeNumber),
		Date:           req.Date,
		Origin:         strings.TrimSpace(req.Origin),
		Content:        req.Content,
		CurrentAreaID:  req.AreaID,
		Status:         store.DocStatusRecibido,
		CreatedBy:      req.ActorID,
	}
	if _, err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.audit(ctx, store.LogTableDocumento, AuditDocCreated, req.ActorID,
		"documento_id="+strconv.FormatInt(doc.ID, 10)+" nro_registro="+doc.RegistryNumber)
	s.audit(ctx, store.LogTableMesaPartes, AuditDocCreated, req.ActorID,
		"documento_id="+strconv.FormatInt(doc.ID, 10))
	return doc, nil
}

type UpdateRequest struct {
	OfficeNumber string
	Date         time.Time
	Origin       string
	Content      string
	ActorID      int64
}

func (s *Service) Update(ctx context.Context, docID int64, req UpdateRequest) (*store.Document, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewDomainError(ErrorCodeNotFound, "documento no encontrado")
	}
	if store.IsTerminalStatus(doc.Status) {
		return nil, NewDomainError(ErrorCodeConflict, "documento en estado terminal")
	}
	doc.OfficeNumber = strings.TrimSpace(req.OfficeNumber)
	if !req.Date.IsZero() {
		doc.Date = req.Date
	}
	doc.Origin = strings.TrimSpace(req.Origin)
	doc.Content = req.Content
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.audit(ctx, store.LogTableDocumento, AuditDocUpdated, req.ActorID,
		"documento_id="+strconv.FormatInt(docID, 10))
	return doc, nil
}

func (s *Service) Get(ctx context.Context, docID int64) (*store.Document, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewDomainError(ErrorCodeNotFound, "documento no encontrado")
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, filter store.DocumentFilter) ([]store.Document, error) {
	return s.docs.List(ctx, filter)
}

// Derive routes the document to the destination area. Permission (the
// Derive bit) is enforced at the route guard; here only domain rules are
// checked: the document must exist and not be terminal, the destination
// must be an active area different from the current one.
func (s *Service) Derive(ctx context.Context, docID, destAreaID, actorID int64, observation string, urgent bool) (*store.Derivation, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewDomainError(ErrorCodeNotFound, "documento no encontrado")
	}
	if store.IsTerminalStatus(doc.Status) {
		return nil, NewDomainError(ErrorCodeConflict, "documento en estado terminal")
	}
	area, err := s.areas.Get(ctx, destAreaID)
	if err != nil {
		return nil, err
	}
	if area == nil || !area.Active {
		return nil, NewDomainError(ErrorCodeValidation, "area destino invalida o inactiva")
	}
	if doc.CurrentAreaID == destAreaID {
		return nil, NewDomainError(ErrorCodeValidation, "el documento ya se encuentra en el area destino")
	}
	deriv, err := s.docs.Derive(ctx, docID, destAreaID, actorID, strings.TrimSpace(observation), urgent)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, NewDomainError(ErrorCodeNotFound, "documento no encontrado")
		case errors.Is(err, store.ErrTerminalStatus):
			return nil, NewDomainError(ErrorCodeConflict, "documento en estado terminal")
		}
		return nil, err
	}
	s.audit(ctx, store.LogTableDerivacion, AuditDocDerived, actorID, fmt.Sprintf(
		"documento_id=%d origen=%d destino=%d urgente=%t", docID, deriv.OriginAreaID, destAreaID, urgent))
	return deriv, nil
}

// Receive marks one derivation row as picked up by the destination area.
func (s *Service) Receive(ctx context.Context, derivationID, userID int64) error {
	err := s.docs.ReceiveDerivation(ctx, derivationID, userID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return NewDomainError(ErrorCodeNotFound, "derivacion no encontrada")
	case errors.Is(err, store.ErrAlreadyReceived):
		return NewDomainError(ErrorCodeConflict, "derivacion ya recibida")
	default:
		return err
	}
	s.audit(ctx, store.LogTableDerivacion, AuditDerivReceived, userID,
		"derivacion_id="+strconv.FormatInt(derivationID, 10))
	return nil
}

// History returns the routing timeline, ascending by derivation time.
// Documents without derivations yield an empty slice, never nil.
func (s *Service) History(ctx context.Context, docID int64) ([]store.Derivation, error) {
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewDomainError(ErrorCodeNotFound, "documento no encontrado")
	}
	return s.docs.History(ctx, docID)
}

// SetStatus applies a terminal (or explicit) status transition. Once a
// document reaches a terminal status no further transition is accepted.
func (s *Service) SetStatus(ctx context.Context, docID int64, status string, actorID int64) error {
	switch status {
	case store.DocStatusCompletado, store.DocStatusArchivado, store.DocStatusRechazado, store.DocStatusEnProceso:
	default:
		return NewDomainError(ErrorCodeValidation, "estado invalido")
	}
	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		return NewDomainError(ErrorCodeNotFound, "documento no encontrado")
	}
	if store.IsTerminalStatus(doc.Status) {
		return NewDomainError(ErrorCodeConflict, "documento en estado terminal")
	}
	if err := s.docs.UpdateStatus(ctx, docID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewDomainError(ErrorCodeNotFound, "documento no encontrado")
		}
		return err
	}
	s.audit(ctx, store.LogTableDocumento, AuditDocStatusSet, actorID,
		"documento_id="+strconv.FormatInt(docID, 10)+" estado="+status)
	return nil
}

func (s *Service) audit(ctx context.Context, table store.LogTable, eventType string, actorID int64, details string) {
	if s.logs == nil {
		return
	}
	ok := true
	rec := &store.LogRecord{EventType: eventType, Success: &ok, Details: details}
	if actorID > 0 {
		rec.UserID = &actorID
	}
	if err := s.logs.Append(ctx, table, rec); err != nil && s.logger != nil {
		s.logger.Errorf("audit append failed table=%s event=%s: %v", table, eventType, err)
	}
}
