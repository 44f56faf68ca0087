package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"movienight/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	entriesHandler *handlers.EntriesHandler,
	annotationsHandler *handlers.AnnotationsHandler,
	syncHandler *handlers.SyncHandler,
	adminHandler *handlers.AdminHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Auth
	api.HandleFunc("/auth/login", adminHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", adminHandler.Logout).Methods(http.MethodPost)

	// Catalog reads
	api.HandleFunc("/entries", entriesHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}", entriesHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/stats", entriesHandler.Stats).Methods(http.MethodGet)

	// Annotations
	api.HandleFunc("/entries/{entryID}/rating", annotationsHandler.GetRating).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}/rating", annotationsHandler.SetRating).Methods(http.MethodPut)
	api.HandleFunc("/entries/{entryID}/progress", annotationsHandler.GetWatchProgress).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}/progress", annotationsHandler.SetWatchProgress).Methods(http.MethodPut)
	api.HandleFunc("/entries/{entryID}/comments", annotationsHandler.GetComments).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}/comments", annotationsHandler.AppendComment).Methods(http.MethodPost)
	api.HandleFunc("/entries/{entryID}/resume", annotationsHandler.GetResume).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}/episode-progress", annotationsHandler.SetEpisodeProgress).Methods(http.MethodPut)
	api.HandleFunc("/entries/{entryID}/episodes/{episode}/rating", annotationsHandler.GetEpisodeRating).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}/episodes/{episode}/rating", annotationsHandler.SetEpisodeRating).Methods(http.MethodPut)
	api.HandleFunc("/entries/{entryID}/episodes/{episode}/status", annotationsHandler.GetEpisodeStatus).Methods(http.MethodGet)
	api.HandleFunc("/entries/{entryID}/episodes/{episode}/status", annotationsHandler.SetEpisodeStatus).Methods(http.MethodPut)

	// Preferences
	api.HandleFunc("/preferences/selected-user", annotationsHandler.GetSelectedUser).Methods(http.MethodGet)
	api.HandleFunc("/preferences/selected-user", annotationsHandler.SetSelectedUser).Methods(http.MethodPut)

	// Sync observability
	api.HandleFunc("/sync/status", syncHandler.Status).Methods(http.MethodGet)

	// Admin (session gated)
	api.HandleFunc("/entries", adminHandler.RequireAuth(adminHandler.CreateEntry)).Methods(http.MethodPost)
	api.HandleFunc("/entries/{entryID}", adminHandler.RequireAuth(adminHandler.UpdateEntry)).Methods(http.MethodPut)
	api.HandleFunc("/entries/{entryID}", adminHandler.RequireAuth(adminHandler.DeleteEntry)).Methods(http.MethodDelete)
	api.HandleFunc("/entries/{entryID}/episodes", adminHandler.RequireAuth(adminHandler.ReplaceEpisodes)).Methods(http.MethodPut)
	api.HandleFunc("/admin/export", adminHandler.RequireAuth(adminHandler.Export)).Methods(http.MethodGet)
	api.HandleFunc("/admin/import", adminHandler.RequireAuth(adminHandler.Import)).Methods(http.MethodPost)
}
