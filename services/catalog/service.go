// Package catalog produces the entry list served to the UI and owns the
// admin-side entry CRUD. The remote store holds the canonical catalog; a
// bundled static list is the fallback and the one-time seed for an empty
// remote.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"movienight/models"
	"movienight/services/remote"
	"movienight/utils/durations"
)

var (
	ErrEntryNotFound   = errors.New("entry not found")
	ErrEntryIDRequired = errors.New("entry id is required")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidType     = errors.New("type must be movie or tv")
	ErrInvalidStatus   = errors.New("status must be watched or upcoming")
	ErrInvalidImport   = errors.New("import payload must be a JSON array of entries")
)

// Remote is the catalog's view of the cloud store.
type Remote interface {
	Entries(ctx context.Context) ([]models.Entry, error)
	SaveEntries(ctx context.Context, entries []models.Entry) error
}

// Annotations supplies the overlay values and receives cascade deletes.
type Annotations interface {
	WatchProgress(entryID string) float64
	Rating(entryID string) (models.DualRating, bool)
	EpisodeStatus(entryID string, episode int, user models.User) (models.WatchStatus, bool)
	DeleteEntryData(entryID string) error
	TrimEpisodeData(entryID string, maxEpisode int) error
}

// Reconciler is triggered once before the first full catalog read.
type Reconciler interface {
	Run(ctx context.Context)
}

// Service assembles the effective entry list and maintains the canonical
// catalog.
type Service struct {
	mu          sync.RWMutex
	remote      Remote
	annotations Annotations
	reconciler  Reconciler
	static      []models.Entry
	cached      []models.Entry
	seeded      bool
}

func New(remoteStore Remote, annotations Annotations, reconciler Reconciler, static []models.Entry) *Service {
	return &Service{
		remote:      remoteStore,
		annotations: annotations,
		reconciler:  reconciler,
		static:      static,
	}
}

// Entries runs the startup reconciliation (a no-op after the first call),
// refreshes the base list from remote, and returns it with annotation values
// overlaid. Remote failures degrade to the last known or bundled list.
func (s *Service) Entries(ctx context.Context) []models.Entry {
	s.reconciler.Run(ctx)
	return s.overlay(s.refreshBase(ctx))
}

// CachedEntries overlays annotations onto the most recently fetched base
// list without touching the network. Empty until the first Entries call.
func (s *Service) CachedEntries() []models.Entry {
	s.mu.RLock()
	base := s.cached
	s.mu.RUnlock()
	return s.overlay(base)
}

// Entry returns a single overlaid entry by identifier.
func (s *Service) Entry(ctx context.Context, entryID string) (models.Entry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return models.Entry{}, ErrEntryIDRequired
	}

	for _, entry := range s.Entries(ctx) {
		if entry.ID == entryID {
			return entry, nil
		}
	}
	return models.Entry{}, ErrEntryNotFound
}

// refreshBase picks the base list: the remote catalog when present and
// non-empty, otherwise the bundled static list. A reachable-but-empty remote
// is seeded with the static list once, best-effort.
func (s *Service) refreshBase(ctx context.Context) []models.Entry {
	remoteEntries, err := s.remote.Entries(ctx)
	if err != nil && !errors.Is(err, remote.ErrDisabled) {
		log.Printf("catalog: remote fetch failed, using fallback list: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && len(remoteEntries) > 0 {
		s.cached = remoteEntries
		return s.cached
	}

	if err == nil && !s.seeded && len(s.static) > 0 {
		s.seeded = true
		if seedErr := s.remote.SaveEntries(ctx, s.static); seedErr != nil {
			log.Printf("catalog: seeding remote catalog failed: %v", seedErr)
		} else {
			log.Printf("catalog: seeded remote catalog with %d bundled entries", len(s.static))
		}
	}

	s.cached = s.static
	return s.cached
}

// overlay copies the base list with watch progress and ratings applied from
// the annotation store. A stored dual rating wins over one embedded in the
// record; both are 0-normalized per member. The base list is never mutated.
func (s *Service) overlay(base []models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(base))
	for _, entry := range base {
		overlaid := entry
		overlaid.WatchProgress = s.annotations.WatchProgress(entry.ID)

		if stored, ok := s.annotations.Rating(entry.ID); ok {
			rating := stored
			overlaid.Ratings = &rating
		} else if entry.Ratings != nil {
			rating := entry.Ratings.Normalized()
			overlaid.Ratings = &rating
		}

		out = append(out, overlaid)
	}
	return out
}

func validateEntry(entry models.Entry) error {
	if strings.TrimSpace(entry.Title) == "" {
		return ErrTitleRequired
	}
	if entry.Type != models.MediaMovie && entry.Type != models.MediaTV {
		return ErrInvalidType
	}
	if !models.ValidWatchStatus(entry.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// Save creates or replaces an entry. Creates get a fresh identifier; updates
// replace the stored record wholesale. The remote write is the canonical one
// and its failure is returned to the caller.
func (s *Service) Save(ctx context.Context, entry models.Entry) (models.Entry, error) {
	if err := validateEntry(entry); err != nil {
		return models.Entry{}, err
	}

	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	entry.WatchProgress = 0 // derived, never part of the canonical record

	list := s.baseCopy(ctx)
	replaced := false
	for i := range list {
		if list[i].ID == entry.ID {
			list[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, entry)
	}

	if err := s.persist(ctx, list); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

// Delete removes an entry from the catalog and cascades into the annotation
// store. The cascade is best-effort; the catalog write is not.
func (s *Service) Delete(ctx context.Context, entryID string) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ErrEntryIDRequired
	}

	list := s.baseCopy(ctx)
	kept := list[:0]
	found := false
	for _, entry := range list {
		if entry.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return ErrEntryNotFound
	}

	if err := s.persist(ctx, kept); err != nil {
		return err
	}

	if err := s.annotations.DeleteEntryData(entryID); err != nil {
		log.Printf("catalog: cleanup of annotations for %s incomplete: %v", entryID, err)
	}
	return nil
}

// ReplaceEpisodes swaps an entry's episode list, renumbering ordinals to stay
// contiguous from 1. Per-episode annotations above the new count are dropped
// so a stale key cannot shadow a future episode.
func (s *Service) ReplaceEpisodes(ctx context.Context, entryID string, episodes []models.Episode) (models.Entry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return models.Entry{}, ErrEntryIDRequired
	}

	renumbered := make([]models.Episode, len(episodes))
	for i, episode := range episodes {
		episode.Number = i + 1
		renumbered[i] = episode
	}

	list := s.baseCopy(ctx)
	var updated *models.Entry
	for i := range list {
		if list[i].ID == entryID {
			list[i].Episodes = renumbered
			updated = &list[i]
			break
		}
	}
	if updated == nil {
		return models.Entry{}, ErrEntryNotFound
	}

	if err := s.persist(ctx, list); err != nil {
		return models.Entry{}, err
	}

	if err := s.annotations.TrimEpisodeData(entryID, len(renumbered)); err != nil {
		log.Printf("catalog: trimming episode annotations for %s failed: %v", entryID, err)
	}
	return *updated, nil
}

// Import replaces the whole catalog from an uploaded JSON payload. Anything
// that is not a JSON array of entries is rejected and the catalog is left
// untouched.
func (s *Service) Import(ctx context.Context, payload []byte) (int, error) {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "[") {
		return 0, ErrInvalidImport
	}

	var entries []models.Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	if err := s.persist(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Export returns the canonical entry list without overlay.
func (s *Service) Export(ctx context.Context) []models.Entry {
	return s.baseCopy(ctx)
}

func (s *Service) baseCopy(ctx context.Context) []models.Entry {
	base := s.refreshBase(ctx)
	out := make([]models.Entry, len(base))
	copy(out, base)
	return out
}

func (s *Service) persist(ctx context.Context, list []models.Entry) error {
	if err := s.remote.SaveEntries(ctx, list); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	s.mu.Lock()
	s.cached = list
	s.mu.Unlock()
	return nil
}

// Stats summarizes the journal for the heatmap/overview surface.
type Stats struct {
	TotalEntries     int     `json:"totalEntries"`
	Watched          int     `json:"watched"`
	Upcoming         int     `json:"upcoming"`
	Movies           int     `json:"movies"`
	TVShows          int     `json:"tvShows"`
	EpisodesWatched  int     `json:"episodesWatched"`
	WatchTimeMinutes int     `json:"watchTimeMinutes"`
	AverageRating    float64 `json:"averageRating"`
}

// ComputeStats derives totals from the overlaid entry list: watched movie
// runtimes come from their duration strings, show time from per-episode
// runtime times episodes either member has marked watched.
func (s *Service) ComputeStats(ctx context.Context) Stats {
	var stats Stats
	var ratingSum, ratingCount int

	for _, entry := range s.Entries(ctx) {
		stats.TotalEntries++
		switch entry.Status {
		case models.StatusWatched:
			stats.Watched++
		case models.StatusUpcoming:
			stats.Upcoming++
		}
		switch entry.Type {
		case models.MediaMovie:
			stats.Movies++
		case models.MediaTV:
			stats.TVShows++
		}

		if entry.Ratings != nil {
			for _, user := range models.Users() {
				if v := entry.Ratings.ValueFor(user); v > 0 {
					ratingSum += v
					ratingCount++
				}
			}
		}

		if entry.Type == models.MediaMovie {
			if entry.Status == models.StatusWatched {
				if minutes, ok := durations.Minutes(entry.Duration); ok {
					stats.WatchTimeMinutes += minutes
				}
			}
			continue
		}

		for _, episode := range entry.Episodes {
			if !s.episodeWatched(entry.ID, episode) {
				continue
			}
			stats.EpisodesWatched++
			stats.WatchTimeMinutes += entry.EpisodeRuntimeMinutes
		}
	}

	if ratingCount > 0 {
		stats.AverageRating = float64(ratingSum) / float64(ratingCount)
	}
	return stats
}

func (s *Service) episodeWatched(entryID string, episode models.Episode) bool {
	for _, user := range models.Users() {
		if status, ok := s.annotations.EpisodeStatus(entryID, episode.Number, user); ok && status == models.StatusWatched {
			return true
		}
	}
	return episode.Status == models.StatusWatched
}
