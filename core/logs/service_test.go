package logs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"oficri-sdt/config"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

func newLogsEnv(t *testing.T) (*Service, store.LogStore, *config.AppConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		LogsDir: filepath.Join(dir, "logs"),
		Exports: config.ExportsConfig{Dir: filepath.Join(dir, "exports"), MaxRows: 100},
	}
	db, err := store.NewSQLiteDB(filepath.Join(dir, "logs.db"), utils.NewLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	logStore := store.NewLogStore(db)
	return NewService(cfg, logStore, utils.NewLogger()), logStore, cfg
}

func appendRows(t *testing.T, logStore store.LogStore, table store.LogTable, n int) {
	t.Helper()
	ok := true
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if err := logStore.Append(context.Background(), table, &store.LogRecord{
			EventType: "evento.prueba",
			EventAt:   base.Add(time.Duration(i) * time.Second),
			Success:   &ok,
			IP:        "127.0.0.1",
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
}

func TestListPaginatesWithTotalAndPages(t *testing.T) {
	svc, logStore, _ := newLogsEnv(t)
	appendRows(t, logStore, store.LogTableUsuario, 25)

	res, err := svc.List(context.Background(), Filter{Table: store.LogTableUsuario, Limit: 10, Offset: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Pagination.Total != 25 {
		t.Fatalf("total = %d, want 25", res.Pagination.Total)
	}
	if res.Pagination.Pages != 3 {
		t.Fatalf("pages = %d, want 3", res.Pagination.Pages)
	}
	if len(res.Rows) != 5 {
		t.Fatalf("last page rows = %d, want 5", len(res.Rows))
	}
}

func TestListDefaultsLimit(t *testing.T) {
	svc, logStore, _ := newLogsEnv(t)
	appendRows(t, logStore, store.LogTablePeticion, 3)
	res, err := svc.List(context.Background(), Filter{Table: store.LogTablePeticion})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Pagination.Limit != defaultListLimit {
		t.Fatalf("limit = %d, want %d", res.Pagination.Limit, defaultListLimit)
	}
	if res.Pagination.Pages != 1 {
		t.Fatalf("pages = %d, want 1", res.Pagination.Pages)
	}
}

func TestFileLogsKeepsMalformedLinesAsRaw(t *testing.T) {
	svc, _, cfg := newLogsEnv(t)
	if err := os.MkdirAll(cfg.LogsDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `{"time":"2026-05-10T08:00:00Z","level":"info","message":"uno"}` + "\n" +
		`this line is not json` + "\n" +
		`{"time":"2026-05-10T08:00:02Z","level":"info","message":"tres"}` + "\n"
	if err := os.WriteFile(filepath.Join(cfg.LogsDir, "app.log"), []byte(content), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}

	res, err := svc.FileLogs(utils.LogFileApp, 10, 0)
	if err != nil {
		t.Fatalf("file logs: %v", err)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(res.Rows))
	}
	if res.Rows[0]["message"] != "uno" {
		t.Fatalf("first entry mismatch: %v", res.Rows[0])
	}
	raw, ok := res.Rows[1]["raw"]
	if !ok || raw != "this line is not json" {
		t.Fatalf("malformed line not preserved as raw: %v", res.Rows[1])
	}
	if res.Rows[2]["message"] != "tres" {
		t.Fatalf("third entry mismatch: %v", res.Rows[2])
	}
}

func TestFileLogsMissingFileIsEmptyResult(t *testing.T) {
	svc, _, _ := newLogsEnv(t)
	res, err := svc.FileLogs(utils.LogFileSecurity, 10, 0)
	if err != nil {
		t.Fatalf("file logs: %v", err)
	}
	if len(res.Rows) != 0 || res.Pagination.Total != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestFileLogsRejectsUnknownCategory(t *testing.T) {
	svc, _, _ := newLogsEnv(t)
	_, err := svc.FileLogs("syslog", 10, 0)
	de, ok := AsDomainError(err)
	if !ok || de.Code != ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatsAggregatesAllTables(t *testing.T) {
	svc, logStore, _ := newLogsEnv(t)
	appendRows(t, logStore, store.LogTableUsuario, 2)
	failed := false
	for _, eventType := range []string{"csrf.invalido", "csrf.invalido"} {
		if err := logStore.Append(context.Background(), store.LogTableIntrusion, &store.LogRecord{
			EventType: eventType, Success: &failed, IP: "10.0.0.9",
		}); err != nil {
			t.Fatalf("append intrusion: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.IntrusionsByType["csrf.invalido"] != 2 {
		t.Fatalf("intrusion grouping wrong: %v", stats.IntrusionsByType)
	}
	if stats.LogTableCounts[store.LogTableUsuario] != 2 {
		t.Fatalf("usuario count wrong: %v", stats.LogTableCounts)
	}
	if stats.TotalLogs != 4 {
		t.Fatalf("total = %d, want 4", stats.TotalLogs)
	}
}
