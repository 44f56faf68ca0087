// Package sync pulls the remote annotation snapshot into local storage once
// per process session. The merge is one-directional: remote values only fill
// keys that have never been written locally.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"movienight/models"
	"movienight/services/remote"
)

// State is the reconciliation lifecycle for the current session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReconciling   State = "reconciling"
	StateReconciled    State = "reconciled"
)

// Source fetches the remote snapshot for this device's namespace.
type Source interface {
	Snapshot(ctx context.Context) (*remote.Snapshot, error)
}

// Store receives the flattened remote sub-trees. Implemented by the
// annotation store.
type Store interface {
	MergeWatchProgress(remote map[string]float64) error
	MergeRatings(remote map[string]models.DualRating) error
	MergeComments(remote map[string][]models.Message) error
	MergeEpisodeProgress(remote map[string]int) error
	MergeEpisodeRatings(remote map[string]models.DualRating) error
	MergeEpisodeStatus(remote map[string]models.WatchStatus) error
}

// Reconciler runs the startup merge at most once per session. Any failure is
// logged and the session is still marked reconciled; local state stays
// authoritative either way.
type Reconciler struct {
	mu     stdsync.Mutex
	state  State
	source Source
	store  Store
}

func New(source Source, store Store) *Reconciler {
	return &Reconciler{
		state:  StateUninitialized,
		source: source,
		store:  store,
	}
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reset returns the reconciler to its initial state so the next Run merges
// again. Intended for tests.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateUninitialized
}

// Run performs the merge on first call and is a no-op afterwards. It never
// returns an error: a failed fetch means there is nothing to merge.
func (r *Reconciler) Run(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateUninitialized {
		r.mu.Unlock()
		return
	}
	r.state = StateReconciling
	r.mu.Unlock()

	r.merge(ctx)

	r.mu.Lock()
	r.state = StateReconciled
	r.mu.Unlock()
}

func (r *Reconciler) merge(ctx context.Context) {
	snap, err := r.source.Snapshot(ctx)
	if err != nil {
		log.Printf("reconcile: remote snapshot unavailable, keeping local state: %v", err)
		return
	}
	if snap == nil {
		return
	}

	if len(snap.WatchProgress) > 0 {
		if err := r.store.MergeWatchProgress(snap.WatchProgress); err != nil {
			log.Printf("reconcile: merge watch progress: %v", err)
		}
	}

	if len(snap.Ratings) > 0 {
		flat := make(map[string]models.DualRating, len(snap.Ratings))
		for entryID, values := range snap.Ratings {
			flat[entryID] = dualRatingFromValues(values)
		}
		if err := r.store.MergeRatings(flat); err != nil {
			log.Printf("reconcile: merge ratings: %v", err)
		}
	}

	if len(snap.Comments) > 0 {
		flat := make(map[string][]models.Message)
		for entryID, scopes := range snap.Comments {
			addThread(flat, entryID, models.ScopeShared, scopes.Shared)
			addThread(flat, entryID, models.ScopeJoJo, scopes.JoJo)
			addThread(flat, entryID, models.ScopeDoDo, scopes.DoDo)
		}
		if err := r.store.MergeComments(flat); err != nil {
			log.Printf("reconcile: merge comments: %v", err)
		}
	}

	if len(snap.EpisodeProgress) > 0 {
		flat := make(map[string]int)
		for entryID, values := range snap.EpisodeProgress {
			if values.JoJo != nil {
				flat[entryID+"-"+string(models.UserJoJo)] = int(*values.JoJo)
			}
			if values.DoDo != nil {
				flat[entryID+"-"+string(models.UserDoDo)] = int(*values.DoDo)
			}
		}
		if err := r.store.MergeEpisodeProgress(flat); err != nil {
			log.Printf("reconcile: merge episode progress: %v", err)
		}
	}

	if len(snap.EpisodeRatings) > 0 {
		flat := make(map[string]models.DualRating)
		for entryID, episodes := range snap.EpisodeRatings {
			for episodeKey, values := range episodes {
				flat[entryID+"-"+episodeKey] = dualRatingFromValues(values)
			}
		}
		if err := r.store.MergeEpisodeRatings(flat); err != nil {
			log.Printf("reconcile: merge episode ratings: %v", err)
		}
	}

	if len(snap.EpisodeStatus) > 0 {
		flat := make(map[string]models.WatchStatus)
		for entryID, episodes := range snap.EpisodeStatus {
			for episodeKey, statuses := range episodes {
				if models.ValidWatchStatus(statuses.JoJo) {
					flat[fmt.Sprintf("%s-%s-%s", entryID, episodeKey, models.UserJoJo)] = statuses.JoJo
				}
				if models.ValidWatchStatus(statuses.DoDo) {
					flat[fmt.Sprintf("%s-%s-%s", entryID, episodeKey, models.UserDoDo)] = statuses.DoDo
				}
			}
		}
		if err := r.store.MergeEpisodeStatus(flat); err != nil {
			log.Printf("reconcile: merge episode status: %v", err)
		}
	}
}

func dualRatingFromValues(values remote.UserValues) models.DualRating {
	var rating models.DualRating
	if values.JoJo != nil {
		rating.JoJo = int(*values.JoJo)
	}
	if values.DoDo != nil {
		rating.DoDo = int(*values.DoDo)
	}
	return rating.Normalized()
}

func addThread(flat map[string][]models.Message, entryID string, scope models.Scope, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	thread := normalizeThread(raw, scope)
	if len(thread) == 0 {
		return
	}
	flat[entryID+"-"+string(scope)] = thread
}

// normalizeThread accepts either a message array or the legacy single-string
// value older installations stored, converting the latter to a one-message
// thread authored by the scope's sender.
func normalizeThread(raw json.RawMessage, scope models.Scope) []models.Message {
	var thread []models.Message
	if err := json.Unmarshal(raw, &thread); err == nil {
		normalized := thread[:0]
		for _, msg := range thread {
			if msg.Text == "" {
				continue
			}
			if msg.ID == "" {
				msg.ID = uuid.NewString()
			}
			if msg.Sender == "" {
				msg.Sender = scope
			}
			if msg.CreatedAt <= 0 {
				msg.CreatedAt = time.Now().UnixMilli()
			}
			normalized = append(normalized, msg)
		}
		return normalized
	}

	var legacy string
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy != "" {
		return []models.Message{{
			ID:        uuid.NewString(),
			Text:      legacy,
			Sender:    scope,
			CreatedAt: time.Now().UnixMilli(),
		}}
	}

	return nil
}
