package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"movienight/models"
	"movienight/services/catalog"
)

type catalogService interface {
	Entries(ctx context.Context) []models.Entry
	Entry(ctx context.Context, entryID string) (models.Entry, error)
	ComputeStats(ctx context.Context) catalog.Stats
}

var _ catalogService = (*catalog.Service)(nil)

type EntriesHandler struct {
	Service catalogService
}

func NewEntriesHandler(service catalogService) *EntriesHandler {
	return &EntriesHandler{Service: service}
}

// List serves the overlaid entry list with optional filtering, search, and
// sorting: ?type=movie|tv, ?status=watched|upcoming, ?q=<title substring>,
// ?sort=date-desc|date-asc|rating-desc.
func (h *EntriesHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.Service.Entries(r.Context())

	query := r.URL.Query()
	mediaType := strings.TrimSpace(query.Get("type"))
	status := strings.TrimSpace(query.Get("status"))
	search := strings.ToLower(strings.TrimSpace(query.Get("q")))

	filtered := make([]models.Entry, 0, len(entries))
	for _, entry := range entries {
		if mediaType != "" && mediaType != "all" && string(entry.Type) != mediaType {
			continue
		}
		if status != "" && string(entry.Status) != status {
			continue
		}
		if search != "" && !matchesSearch(entry, search) {
			continue
		}
		filtered = append(filtered, entry)
	}

	sortEntries(filtered, query.Get("sort"))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(filtered)
}

func matchesSearch(entry models.Entry, search string) bool {
	return strings.Contains(strings.ToLower(entry.Title), search) ||
		strings.Contains(strings.ToLower(entry.OriginalTitle), search)
}

func sortEntries(entries []models.Entry, order string) {
	switch order {
	case "date-asc":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Date < entries[j].Date
		})
	case "rating-desc":
		sort.SliceStable(entries, func(i, j int) bool {
			ri, rj := entryRating(entries[i]), entryRating(entries[j])
			if ri == rj {
				return entries[i].Date > entries[j].Date
			}
			return ri > rj
		})
	default: // date-desc
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Date > entries[j].Date
		})
	}
}

// entryRating collapses an entry to a single sortable value: the average of
// the dual ratings when present, else the legacy single rating.
func entryRating(entry models.Entry) float64 {
	if entry.Ratings != nil {
		r := entry.Ratings.Normalized()
		return float64(r.JoJo+r.DoDo) / 2
	}
	return float64(entry.Rating)
}

func (h *EntriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entryID := strings.TrimSpace(vars["entryID"])
	if entryID == "" {
		http.Error(w, "entry id is required", http.StatusBadRequest)
		return
	}

	entry, err := h.Service.Entry(r.Context(), entryID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, catalog.ErrEntryNotFound):
			status = http.StatusNotFound
		case errors.Is(err, catalog.ErrEntryIDRequired):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *EntriesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.ComputeStats(r.Context()))
}
