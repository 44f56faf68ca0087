package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"movienight/handlers"
	"movienight/models"
	"movienight/services/auth"
	"movienight/services/catalog"
)

type fakeAdminCatalog struct {
	saved    []models.Entry
	deleted  []string
	imported []byte
	exported []models.Entry
}

func (f *fakeAdminCatalog) Save(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return models.Entry{}, catalog.ErrTitleRequired
	}
	if entry.ID == "" {
		entry.ID = "generated"
	}
	f.saved = append(f.saved, entry)
	return entry, nil
}

func (f *fakeAdminCatalog) Delete(ctx context.Context, entryID string) error {
	if entryID == "missing" {
		return catalog.ErrEntryNotFound
	}
	f.deleted = append(f.deleted, entryID)
	return nil
}

func (f *fakeAdminCatalog) ReplaceEpisodes(ctx context.Context, entryID string, episodes []models.Episode) (models.Entry, error) {
	return models.Entry{ID: entryID, Episodes: episodes}, nil
}

func (f *fakeAdminCatalog) Import(ctx context.Context, payload []byte) (int, error) {
	if !strings.HasPrefix(strings.TrimSpace(string(payload)), "[") {
		return 0, catalog.ErrInvalidImport
	}
	f.imported = payload
	return 2, nil
}

func (f *fakeAdminCatalog) Export(ctx context.Context) []models.Entry {
	return f.exported
}

type fakeAuth struct {
	validToken string
	configured bool
	loggedOut  []string
}

func (f *fakeAuth) Login(user, password string) (auth.Session, error) {
	if !f.configured {
		return auth.Session{}, auth.ErrNotConfigured
	}
	if user != "jojo" || password != "secret" {
		return auth.Session{}, auth.ErrInvalidCredentials
	}
	return auth.Session{Token: f.validToken, User: user}, nil
}

func (f *fakeAuth) Validate(token string) (auth.Session, bool) {
	if token != "" && token == f.validToken {
		return auth.Session{Token: token, User: "jojo"}, true
	}
	return auth.Session{}, false
}

func (f *fakeAuth) Logout(token string) {
	f.loggedOut = append(f.loggedOut, token)
}

func newAdminHandler() (*handlers.AdminHandler, *fakeAdminCatalog, *fakeAuth) {
	catalogFake := &fakeAdminCatalog{}
	authFake := &fakeAuth{validToken: "tok-1", configured: true}
	return handlers.NewAdminHandler(catalogFake, authFake), catalogFake, authFake
}

func TestRequireAuthRejectsMissingOrBadToken(t *testing.T) {
	h, _, _ := newAdminHandler()
	protected := h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/entries", nil)
	rec := httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/entries", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestRequireAuthAcceptsBothHeaderForms(t *testing.T) {
	h, _, _ := newAdminHandler()
	protected := h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/entries", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("bearer token rejected: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/entries", nil)
	req.Header.Set("X-Admin-Token", "tok-1")
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("header token rejected: %d", rec.Code)
	}
}

func TestLoginStatusMapping(t *testing.T) {
	h, _, authFake := newAdminHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"user":"jojo","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	authFake.configured = false
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"user":"jojo","password":"secret"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when unconfigured, got %d", rec.Code)
	}

	authFake.configured = true
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"user":"jojo","password":"secret"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var session auth.Session
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token != "tok-1" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestCreateEntryIgnoresClientID(t *testing.T) {
	h, catalogFake, _ := newAdminHandler()

	body := `{"id":"spoofed","title":"Parasite","type":"movie","status":"watched"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/entries", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateEntry(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(catalogFake.saved) != 1 || catalogFake.saved[0].ID != "generated" {
		t.Fatalf("client-supplied id was not discarded: %+v", catalogFake.saved)
	}
}

func TestUpdateEntryForcesPathID(t *testing.T) {
	h, catalogFake, _ := newAdminHandler()

	body := `{"id":"other","title":"Parasite","type":"movie","status":"watched"}`
	req := httptest.NewRequest(http.MethodPut, "/api/admin/entries/7", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"entryID": "7"})
	rec := httptest.NewRecorder()
	h.UpdateEntry(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(catalogFake.saved) != 1 || catalogFake.saved[0].ID != "7" {
		t.Fatalf("path id not enforced: %+v", catalogFake.saved)
	}
}

func TestDeleteEntry(t *testing.T) {
	h, catalogFake, _ := newAdminHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/entries/7", nil)
	req = mux.SetURLVars(req, map[string]string{"entryID": "7"})
	rec := httptest.NewRecorder()
	h.DeleteEntry(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(catalogFake.deleted) != 1 || catalogFake.deleted[0] != "7" {
		t.Fatalf("delete not forwarded: %v", catalogFake.deleted)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/entries/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"entryID": "missing"})
	rec = httptest.NewRecorder()
	h.DeleteEntry(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestImportResponses(t *testing.T) {
	h, _, _ := newAdminHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", strings.NewReader(`{"not":"a list"}`))
	rec := httptest.NewRecorder()
	h.Import(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-array payload, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/import", strings.NewReader(`[{},{}]`))
	rec = httptest.NewRecorder()
	h.Import(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["imported"] != 2 {
		t.Fatalf("unexpected import count %v", got)
	}
}

func TestExportIsADownload(t *testing.T) {
	h, catalogFake, _ := newAdminHandler()
	catalogFake.exported = []models.Entry{{ID: "1", Title: "Exit"}}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/export", nil)
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", got)
	}
	var entries []models.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Exit" {
		t.Fatalf("unexpected export %+v", entries)
	}
}

func TestLogoutDiscardsToken(t *testing.T) {
	h, _, authFake := newAdminHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(authFake.loggedOut) != 1 || authFake.loggedOut[0] != "tok-1" {
		t.Fatalf("logout not forwarded: %v", authFake.loggedOut)
	}
}
