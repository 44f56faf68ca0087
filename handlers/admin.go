package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"movienight/models"
	"movienight/services/auth"
	"movienight/services/catalog"
)

const maxImportBytes = 10 << 20

type adminCatalog interface {
	Save(ctx context.Context, entry models.Entry) (models.Entry, error)
	Delete(ctx context.Context, entryID string) error
	ReplaceEpisodes(ctx context.Context, entryID string, episodes []models.Episode) (models.Entry, error)
	Import(ctx context.Context, payload []byte) (int, error)
	Export(ctx context.Context) []models.Entry
}

type adminAuth interface {
	Login(user, password string) (auth.Session, error)
	Validate(token string) (auth.Session, bool)
	Logout(token string)
}

var (
	_ adminCatalog = (*catalog.Service)(nil)
	_ adminAuth    = (*auth.Service)(nil)
)

// AdminHandler serves the password-gated maintenance surface: entry CRUD,
// episode edits, and catalog export/import.
type AdminHandler struct {
	Catalog adminCatalog
	Auth    adminAuth
}

func NewAdminHandler(catalogSvc adminCatalog, authSvc adminAuth) *AdminHandler {
	return &AdminHandler{Catalog: catalogSvc, Auth: authSvc}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.Auth.Login(body.User, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			status = http.StatusUnauthorized
		case errors.Is(err, auth.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Auth.Logout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-Admin-Token"))
}

// RequireAuth wraps an admin endpoint with session validation.
func (h *AdminHandler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.Auth.Validate(bearerToken(r)); !ok {
			http.Error(w, "admin session required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func catalogStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrEntryIDRequired),
		errors.Is(err, catalog.ErrTitleRequired),
		errors.Is(err, catalog.ErrInvalidType),
		errors.Is(err, catalog.ErrInvalidStatus),
		errors.Is(err, catalog.ErrInvalidImport):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *AdminHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var entry models.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry.ID = "" // creates always get a fresh identifier

	saved, err := h.Catalog.Save(r.Context(), entry)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(saved)
}

func (h *AdminHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	entryID := strings.TrimSpace(mux.Vars(r)["entryID"])
	if entryID == "" {
		http.Error(w, "entry id is required", http.StatusBadRequest)
		return
	}

	var entry models.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry.ID = entryID

	saved, err := h.Catalog.Save(r.Context(), entry)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}

func (h *AdminHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID := strings.TrimSpace(mux.Vars(r)["entryID"])
	if entryID == "" {
		http.Error(w, "entry id is required", http.StatusBadRequest)
		return
	}

	if err := h.Catalog.Delete(r.Context(), entryID); err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ReplaceEpisodes(w http.ResponseWriter, r *http.Request) {
	entryID := strings.TrimSpace(mux.Vars(r)["entryID"])
	if entryID == "" {
		http.Error(w, "entry id is required", http.StatusBadRequest)
		return
	}

	var episodes []models.Episode
	if err := json.NewDecoder(r.Body).Decode(&episodes); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.Catalog.ReplaceEpisodes(r.Context(), entryID, episodes)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="movie-night-entries.json"`)
	json.NewEncoder(w).Encode(h.Catalog.Export(r.Context()))
}

func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	count, err := h.Catalog.Import(r.Context(), payload)
	if err != nil {
		http.Error(w, err.Error(), catalogStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"imported": count})
}
