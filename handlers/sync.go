package handlers

import (
	"encoding/json"
	"net/http"

	"movienight/services/annotations"
	syncsvc "movienight/services/sync"
)

type reconcilerStatus interface {
	State() syncsvc.State
}

type mirrorCounter interface {
	PendingMirrors() int64
}

var (
	_ reconcilerStatus = (*syncsvc.Reconciler)(nil)
	_ mirrorCounter    = (*annotations.Service)(nil)
)

// SyncHandler exposes the reconciliation state and the count of in-flight
// background remote writes.
type SyncHandler struct {
	Reconciler reconcilerStatus
	Store      mirrorCounter
}

func NewSyncHandler(reconciler reconcilerStatus, store mirrorCounter) *SyncHandler {
	return &SyncHandler{Reconciler: reconciler, Store: store}
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state":          h.Reconciler.State(),
		"pendingMirrors": h.Store.PendingMirrors(),
	})
}
