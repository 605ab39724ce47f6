package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"oficri-sdt/config"
	"oficri-sdt/core/rbac"
	"oficri-sdt/core/store"
	"oficri-sdt/core/utils"
)

type accountsEnv struct {
	handler *AccountsHandler
	users   store.UsersStore
	areas   store.AreasStore
	areaID  int64
}

func newAccountsEnv(t *testing.T) *accountsEnv {
	t.Helper()
	cfg := &config.AppConfig{Pepper: "pepper"}
	logger := utils.NewLogger()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "accounts.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	users := store.NewUsersStore(db)
	areas := store.NewAreasStore(db)
	areaID, err := areas.Create(context.Background(), &store.Area{Name: "Balistica", Code: "BAL", Active: true})
	if err != nil {
		t.Fatalf("area: %v", err)
	}
	handler := NewAccountsHandler(cfg, users, areas, store.NewSessionsStore(db), store.NewLogStore(db), rbac.DefaultPolicy(), logger)
	return &accountsEnv{handler: handler, users: users, areas: areas, areaID: areaID}
}

func (e *accountsEnv) create(t *testing.T, cip string, areaID int64) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"cip":"` + cip + `","nombres":"Perito Nuevo","password":"secreto123","rol_id":3,"area_id":` +
		strconv.FormatInt(areaID, 10) + `}`
	req := httptest.NewRequest(http.MethodPost, "/api/usuarios", strings.NewReader(body))
	rr := httptest.NewRecorder()
	e.handler.Create(rr, req)
	return rr
}

func TestCreateUserRejectsUnknownArea(t *testing.T) {
	env := newAccountsEnv(t)
	rr := env.create(t, "11112222", 999)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown area, got %d: %s", rr.Code, rr.Body.String())
	}
	if u, _ := env.users.FindByCIP(context.Background(), "11112222"); u != nil {
		t.Fatalf("user must not be created against a missing area")
	}
}

func TestCreateUserRejectsInactiveArea(t *testing.T) {
	env := newAccountsEnv(t)
	if err := env.areas.SetActive(context.Background(), env.areaID, false); err != nil {
		t.Fatalf("deactivate area: %v", err)
	}
	if rr := env.create(t, "11112222", env.areaID); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inactive area, got %d", rr.Code)
	}
}

func TestCreateUserWithValidArea(t *testing.T) {
	env := newAccountsEnv(t)
	rr := env.create(t, "11112222", env.areaID)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateUserRejectsUnknownArea(t *testing.T) {
	env := newAccountsEnv(t)
	if rr := env.create(t, "11112222", env.areaID); rr.Code != http.StatusCreated {
		t.Fatalf("seed user: %d", rr.Code)
	}
	u, err := env.users.FindByCIP(context.Background(), "11112222")
	if err != nil || u == nil {
		t.Fatalf("seed lookup: %v", err)
	}

	router := chi.NewRouter()
	router.Put("/api/usuarios/{id}", env.handler.Update)
	body := `{"cip":"11112222","nombres":"Perito Nuevo","rol_id":3,"area_id":999}`
	req := httptest.NewRequest(http.MethodPut, "/api/usuarios/"+strconv.FormatInt(u.ID, 10), strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown area on update, got %d: %s", rr.Code, rr.Body.String())
	}
	after, _ := env.users.GetByID(context.Background(), u.ID)
	if after.AreaID != env.areaID {
		t.Fatalf("area must be unchanged after rejected update, got %d", after.AreaID)
	}
}
