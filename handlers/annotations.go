package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"movienight/models"
	"movienight/services/annotations"
)

type annotationsService interface {
	SetRating(entryID string, user models.User, value int) (models.DualRating, error)
	Rating(entryID string) (models.DualRating, bool)
	SetWatchProgress(entryID string, seconds float64) error
	WatchProgress(entryID string) float64
	SetEpisodeProgress(entryID string, user models.User, episodeIndex int) error
	ResumeEpisodeIndex(entryID string, preferred models.User) int
	SetEpisodeRating(entryID string, episode int, user models.User, value int) (models.DualRating, error)
	EpisodeRating(entryID string, episode int) (models.DualRating, bool)
	SetEpisodeStatus(entryID string, episode int, user models.User, status models.WatchStatus) error
	EpisodeStatus(entryID string, episode int, user models.User) (models.WatchStatus, bool)
	AppendComment(entryID, text string, scope models.Scope) (models.Message, error)
	CommentThread(entryID string) []models.Message
	SelectedUser() (models.User, bool)
	SetSelectedUser(user models.User) error
}

var _ annotationsService = (*annotations.Service)(nil)

type AnnotationsHandler struct {
	Service annotationsService
}

func NewAnnotationsHandler(service annotationsService) *AnnotationsHandler {
	return &AnnotationsHandler{Service: service}
}

// annotationStatus maps the store's validation sentinels onto HTTP codes.
func annotationStatus(err error) int {
	switch {
	case errors.Is(err, annotations.ErrEntryIDRequired),
		errors.Is(err, annotations.ErrInvalidUser),
		errors.Is(err, annotations.ErrInvalidRating),
		errors.Is(err, annotations.ErrInvalidStatus),
		errors.Is(err, annotations.ErrInvalidScope),
		errors.Is(err, annotations.ErrEmptyComment):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func entryIDVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	entryID := strings.TrimSpace(mux.Vars(r)["entryID"])
	if entryID == "" {
		http.Error(w, "entry id is required", http.StatusBadRequest)
		return "", false
	}
	return entryID, true
}

func episodeVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	episode, err := strconv.Atoi(mux.Vars(r)["episode"])
	if err != nil || episode < 1 {
		http.Error(w, "episode number must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return episode, true
}

// GetRating returns the stored dual rating for an entry, or null when nobody
// has rated it. Callers treat null as "fall back to the entry's own rating".
func (h *AnnotationsHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if rating, ok := h.Service.Rating(entryID); ok {
		json.NewEncoder(w).Encode(rating)
		return
	}
	json.NewEncoder(w).Encode(nil)
}

func (h *AnnotationsHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	var body struct {
		User  models.User `json:"user"`
		Value int         `json:"value"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rating, err := h.Service.SetRating(entryID, body.User, body.Value)
	if err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rating)
}

func (h *AnnotationsHandler) GetWatchProgress(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"seconds": h.Service.WatchProgress(entryID)})
}

func (h *AnnotationsHandler) SetWatchProgress(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	var body struct {
		Seconds float64 `json:"seconds"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetWatchProgress(entryID, body.Seconds); err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationsHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.CommentThread(entryID))
}

func (h *AnnotationsHandler) AppendComment(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	var body struct {
		Text  string       `json:"text"`
		Scope models.Scope `json:"scope"`
		User  models.User  `json:"user"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scope := body.Scope
	if scope == "" {
		scope = models.ScopeForUser(body.User)
	}

	msg, err := h.Service.AppendComment(entryID, body.Text, scope)
	if err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func (h *AnnotationsHandler) GetEpisodeRating(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}
	episode, ok := episodeVar(w, r)
	if !ok {
		return
	}

	// Unseen episodes report a zero-valued pair rather than null.
	rating, _ := h.Service.EpisodeRating(entryID, episode)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rating)
}

func (h *AnnotationsHandler) SetEpisodeRating(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}
	episode, ok := episodeVar(w, r)
	if !ok {
		return
	}

	var body struct {
		User  models.User `json:"user"`
		Value int         `json:"value"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rating, err := h.Service.SetEpisodeRating(entryID, episode, body.User, body.Value)
	if err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rating)
}

func (h *AnnotationsHandler) GetEpisodeStatus(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}
	episode, ok := episodeVar(w, r)
	if !ok {
		return
	}

	user := models.User(r.URL.Query().Get("user"))
	if !models.ValidUser(user) {
		http.Error(w, "user query parameter is required", http.StatusBadRequest)
		return
	}

	status, _ := h.Service.EpisodeStatus(entryID, episode, user)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]models.WatchStatus{"status": status})
}

func (h *AnnotationsHandler) SetEpisodeStatus(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}
	episode, ok := episodeVar(w, r)
	if !ok {
		return
	}

	var body struct {
		User   models.User        `json:"user"`
		Status models.WatchStatus `json:"status"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetEpisodeStatus(entryID, episode, body.User, body.Status); err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetResume reports which episode to resume at. Without a user it is the
// later of the two members' positions.
func (h *AnnotationsHandler) GetResume(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	preferred := models.User(r.URL.Query().Get("user"))
	index := h.Service.ResumeEpisodeIndex(entryID, preferred)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"episodeIndex": index})
}

func (h *AnnotationsHandler) SetEpisodeProgress(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDVar(w, r)
	if !ok {
		return
	}

	var body struct {
		User         models.User `json:"user"`
		EpisodeIndex int         `json:"episodeIndex"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetEpisodeProgress(entryID, body.User, body.EpisodeIndex); err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationsHandler) GetSelectedUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if user, ok := h.Service.SelectedUser(); ok {
		json.NewEncoder(w).Encode(map[string]models.User{"user": user})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"user": nil})
}

func (h *AnnotationsHandler) SetSelectedUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User models.User `json:"user"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetSelectedUser(body.User); err != nil {
		http.Error(w, err.Error(), annotationStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
