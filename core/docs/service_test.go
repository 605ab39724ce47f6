package docs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type docsEnv struct {
	svc   *Service
	docs  store.DocumentsStore
	areas store.AreasStore
	logs  store.LogStore
}

func newDocsEnv(t *testing.T) *docsEnv {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "docs.db"), utils.NewLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	documents := store.NewDocumentsStore(db)
	areas := store.NewAreasStore(db)
	logs := store.NewLogStore(db)
	return &docsEnv{
		svc:   NewService(documents, areas, logs, utils.NewLogger()),
		docs:  documents,
		areas: areas,
		logs:  logs,
	}
}

func (e *docsEnv) area(t *testing.T, code string, active bool) int64 {
	t.Helper()
	id, err := e.areas.Create(context.Background(), &store.Area{
		Name: "Area " + code, Code: code, Active: true,
	})
	if err != nil {
		t.Fatalf("area %s: %v", code, err)
	}
	if !active {
		if err := e.areas.SetActive(context.Background(), id, false); err != nil {
			t.Fatalf("deactivate %s: %v", code, err)
		}
	}
	return id
}

func (e *docsEnv) document(t *testing.T, registry string, areaID int64) *store.Document {
	t.Helper()
	doc, err := e.svc.Create(context.Background(), CreateRequest{
		RegistryNumber: registry,
		OfficeNumber:   "OF-100",
		Date:           time.Now().UTC(),
		Origin:         "FISCALIA",
		Content:        "pericia",
		AreaID:         areaID,
		ActorID:        1,
	})
	if err != nil {
		t.Fatalf("create %s: %v", registry, err)
	}
	return doc
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	de, ok := AsDomainError(err)
	if !ok {
		t.Fatalf("expected domain error %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected code %s, got %s", code, de.Code)
	}
}

func TestCreateRejectsEmptyRegistryAndInactiveArea(t *testing.T) {
	env := newDocsEnv(t)
	ctx := context.Background()
	active := env.area(t, "MP", true)
	inactive := env.area(t, "OLD", false)

	_, err := env.svc.Create(ctx, CreateRequest{RegistryNumber: "  ", AreaID: active})
	expectCode(t, err, ErrorCodeValidation)

	_, err = env.svc.Create(ctx, CreateRequest{RegistryNumber: "REG-1", AreaID: inactive})
	expectCode(t, err, ErrorCodeValidation)

	doc := env.document(t, "REG-2", active)
	if doc.Status != store.DocStatusRecibido {
		t.Fatalf("new document status = %s, want RECIBIDO", doc.Status)
	}
}

func TestDeriveRejectsSameAreaInactiveDestinationAndTerminal(t *testing.T) {
	env := newDocsEnv(t)
	ctx := context.Background()
	origin := env.area(t, "MP", true)
	dest := env.area(t, "QF", true)
	inactive := env.area(t, "OLD", false)
	doc := env.document(t, "REG-10", origin)

	_, err := env.svc.Derive(ctx, doc.ID, origin, 1, "", false)
	expectCode(t, err, ErrorCodeValidation)

	_, err = env.svc.Derive(ctx, doc.ID, inactive, 1, "", false)
	expectCode(t, err, ErrorCodeValidation)

	_, err = env.svc.Derive(ctx, 9999, dest, 1, "", false)
	expectCode(t, err, ErrorCodeNotFound)

	if err := env.svc.SetStatus(ctx, doc.ID, store.DocStatusCompletado, 1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = env.svc.Derive(ctx, doc.ID, dest, 1, "", false)
	expectCode(t, err, ErrorCodeConflict)
}

func TestDeriveAuditsDerivationLog(t *testing.T) {
	env := newDocsEnv(t)
	ctx := context.Background()
	origin := env.area(t, "MP", true)
	dest := env.area(t, "QF", true)
	doc := env.document(t, "REG-20", origin)

	if _, err := env.svc.Derive(ctx, doc.ID, dest, 3, "plazo fiscal", true); err != nil {
		t.Fatalf("derive: %v", err)
	}
	n, err := env.logs.Count(ctx, store.LogTableDerivacion, store.LogRange{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 derivation audit row, got %d", n)
	}
	rows, _ := env.logs.List(ctx, store.LogTableDerivacion, store.LogRange{}, 10, 0)
	if rows[0].EventType != AuditDocDerived {
		t.Fatalf("unexpected audit event: %s", rows[0].EventType)
	}
	if rows[0].UserID == nil || *rows[0].UserID != 3 {
		t.Fatalf("audit row missing actor: %+v", rows[0])
	}
}

func TestUpdateTerminalDocumentIsConflictAndUnchanged(t *testing.T) {
	env := newDocsEnv(t)
	ctx := context.Background()
	origin := env.area(t, "MP", true)
	doc := env.document(t, "REG-30", origin)

	if err := env.svc.SetStatus(ctx, doc.ID, store.DocStatusArchivado, 1); err != nil {
		t.Fatalf("archive: %v", err)
	}
	_, err := env.svc.Update(ctx, doc.ID, UpdateRequest{OfficeNumber: "OF-999", ActorID: 1})
	expectCode(t, err, ErrorCodeConflict)

	after, err := env.svc.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.OfficeNumber != "OF-100" || after.Status != store.DocStatusArchivado {
		t.Fatalf("terminal document mutated: %+v", after)
	}
}

func TestSetStatusRejectsUnknownAndSecondTerminal(t *testing.T) {
	env := newDocsEnv(t)
	ctx := context.Background()
	origin := env.area(t, "MP", true)
	doc := env.document(t, "REG-40", origin)

	expectCode(t, env.svc.SetStatus(ctx, doc.ID, "DESCONOCIDO", 1), ErrorCodeValidation)
	if err := env.svc.SetStatus(ctx, doc.ID, store.DocStatusRechazado, 1); err != nil {
		t.Fatalf("reject: %v", err)
	}
	expectCode(t, env.svc.SetStatus(ctx, doc.ID, store.DocStatusCompletado, 1), ErrorCodeConflict)
}

func TestReceiveTwiceIsConflict(t *testing.T) {
	env := newDocsEnv(t)
	ctx := context.Background()
	origin := env.area(t, "MP", true)
	dest := env.area(t, "QF", true)
	doc := env.document(t, "REG-50", origin)

	deriv, err := env.svc.Derive(ctx, doc.ID, dest, 1, "", false)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if err := env.svc.Receive(ctx, deriv.ID, 2); err != nil {
		t.Fatalf("first receive: %v", err)
	}
	expectCode(t, env.svc.Receive(ctx, deriv.ID, 2), ErrorCodeConflict)
	expectCode(t, env.svc.Receive(ctx, 9999, 2), ErrorCodeNotFound)
}

func TestHistoryForMissingDocumentIsNotFound(t *testing.T) {
	env := newDocsEnv(t)
	_, err := env.svc.History(context.Background(), 4242)
	expectCode(t, err, ErrorCodeNotFound)
}

func TestHistoryForDocumentWithoutDerivationsIsEmpty(t *testing.T) {
	env := newDocsEnv(t)
	origin := env.area(t, "MP", true)
	doc := env.document(t, "REG-60", origin)
	history, err := env.svc.History(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history == nil {
		t.Fatalf("history must be non-nil")
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}
