// Package annotations is the single read/write surface for all per-member
// journal data: ratings, watch progress, comment threads, and per-episode
// state. Each category persists as one flat JSON map in its own file under
// the storage directory. Local writes are synchronous; a configured remote
// mirror receives the same change in the background and its failures are
// logged, never returned.
package annotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"movienight/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrEntryIDRequired    = errors.New("entry id is required")
	ErrInvalidUser        = errors.New("unknown user")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrInvalidStatus      = errors.New("status must be watched or upcoming")
	ErrInvalidScope       = errors.New("unknown comment scope")
	ErrEmptyComment       = errors.New("comment text is required")
)

// Mirror pushes individual annotation writes to the remote store. A nil or
// disabled mirror turns mirroring off.
type Mirror interface {
	Enabled() bool
	SetRating(ctx context.Context, entryID string, user models.User, value int) error
	SetWatchProgress(ctx context.Context, entryID string, seconds float64) error
	SetEpisodeProgress(ctx context.Context, entryID string, user models.User, episodeIndex int) error
	SetEpisodeRating(ctx context.Context, entryID string, episode int, user models.User, value int) error
	SetEpisodeStatus(ctx context.Context, entryID string, episode int, user models.User, status models.WatchStatus) error
	SetCommentThread(ctx context.Context, entryID string, scope models.Scope, thread []models.Message) error
}

// Service owns all annotation records. Local state is authoritative for the
// running session; the remote store is only read once at startup by the
// reconciler.
type Service struct {
	mu            sync.RWMutex
	dir           string
	mirror        Mirror
	mirrorTimeout time.Duration
	pending       atomic.Int64
	mirrorWG      sync.WaitGroup

	watchProgress   map[string]float64            // entryID -> seconds
	ratings         map[string]models.DualRating  // entryID
	comments        map[string][]models.Message   // entryID-scope
	episodeProgress map[string]int                // entryID-user -> episode index
	episodeRatings  map[string]models.DualRating  // entryID-epN
	episodeStatus   map[string]models.WatchStatus // entryID-epN-user
	preferences     map[string]string
}

const selectedUserKey = "selectedUser"

// NewService loads all annotation categories from storageDir. Missing or
// corrupt files are treated as empty, never as errors.
func NewService(storageDir string, mirror Mirror) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create annotations dir: %w", err)
	}

	svc := &Service{
		dir:           storageDir,
		mirror:        mirror,
		mirrorTimeout: 15 * time.Second,
	}

	svc.watchProgress = loadMap[float64](svc.file("watch_progress.json"))
	svc.ratings = loadMap[models.DualRating](svc.file("ratings.json"))
	svc.comments = loadMap[[]models.Message](svc.file("comments.json"))
	svc.episodeProgress = loadMap[int](svc.file("episode_progress.json"))
	svc.episodeRatings = loadMap[models.DualRating](svc.file("episode_ratings.json"))
	svc.episodeStatus = loadMap[models.WatchStatus](svc.file("episode_status.json"))
	svc.preferences = loadMap[string](svc.file("preferences.json"))

	return svc, nil
}

func (s *Service) file(name string) string {
	return filepath.Join(s.dir, name)
}

// loadMap reads one flat JSON map from disk. Any failure yields an empty map
// so a corrupt file degrades to "no data" instead of an unusable store.
func loadMap[T any](path string) map[string]T {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("read %s: %v, starting empty", filepath.Base(path), err)
		}
		return make(map[string]T)
	}
	if len(data) == 0 {
		return make(map[string]T)
	}

	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("parse %s: %v, starting empty", filepath.Base(path), err)
		return make(map[string]T)
	}
	if m == nil {
		m = make(map[string]T)
	}
	return m
}

// writeJSON persists v atomically via a temp file rename.
func writeJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func userKey(entryID string, user models.User) string {
	return entryID + "-" + string(user)
}

func episodeKey(entryID string, episode int) string {
	return fmt.Sprintf("%s-ep%d", entryID, episode)
}

func episodeUserKey(entryID string, episode int, user models.User) string {
	return fmt.Sprintf("%s-ep%d-%s", entryID, episode, user)
}

func commentKey(entryID string, scope models.Scope) string {
	return entryID + "-" + string(scope)
}

// mirrorAsync runs fn in the background against the remote mirror. Callers
// never see mirror failures; they are logged and the write is dropped.
func (s *Service) mirrorAsync(what string, fn func(ctx context.Context) error) {
	if s.mirror == nil || !s.mirror.Enabled() {
		return
	}

	s.pending.Add(1)
	s.mirrorWG.Add(1)
	go func() {
		defer s.mirrorWG.Done()
		defer s.pending.Add(-1)

		ctx, cancel := context.WithTimeout(context.Background(), s.mirrorTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Printf("remote mirror failed (%s), keeping local copy: %v", what, err)
		}
	}()
}

// PendingMirrors reports how many background remote writes are in flight.
func (s *Service) PendingMirrors() int64 {
	return s.pending.Load()
}

// Flush waits for in-flight remote mirror writes to settle. Used on shutdown
// and in tests.
func (s *Service) Flush() {
	s.mirrorWG.Wait()
}

// SetRating stores one member's rating for an entry, defaulting the other
// member to 0 when the record is new.
func (s *Service) SetRating(entryID string, user models.User, value int) (models.DualRating, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return models.DualRating{}, ErrEntryIDRequired
	}
	if !models.ValidUser(user) {
		return models.DualRating{}, ErrInvalidUser
	}
	if !models.ValidRating(value) {
		return models.DualRating{}, ErrInvalidRating
	}

	s.mu.Lock()
	rating := s.ratings[entryID]
	rating.SetFor(user, value)
	s.ratings[entryID] = rating
	err := writeJSON(s.file("ratings.json"), s.ratings)
	s.mu.Unlock()
	if err != nil {
		return models.DualRating{}, err
	}

	s.mirrorAsync("rating "+entryID, func(ctx context.Context) error {
		return s.mirror.SetRating(ctx, entryID, user, value)
	})

	return rating, nil
}

// Rating returns the stored dual rating for an entry. ok is false when no
// rating record exists, which callers must distinguish from a zero rating.
func (s *Service) Rating(entryID string) (models.DualRating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rating, ok := s.ratings[entryID]
	if !ok {
		return models.DualRating{}, false
	}
	return rating.Normalized(), true
}

// SetWatchProgress stores the playback position for an entry.
func (s *Service) SetWatchProgress(entryID string, seconds float64) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ErrEntryIDRequired
	}
	seconds = models.NormalizeSeconds(seconds)

	s.mu.Lock()
	s.watchProgress[entryID] = seconds
	err := writeJSON(s.file("watch_progress.json"), s.watchProgress)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.mirrorAsync("watch progress "+entryID, func(ctx context.Context) error {
		return s.mirror.SetWatchProgress(ctx, entryID, seconds)
	})

	return nil
}

// WatchProgress returns the playback position for an entry, 0 when unknown.
func (s *Service) WatchProgress(entryID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.NormalizeSeconds(s.watchProgress[entryID])
}

// SetEpisodeProgress stores a member's last-watched episode index.
func (s *Service) SetEpisodeProgress(entryID string, user models.User, episodeIndex int) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ErrEntryIDRequired
	}
	if !models.ValidUser(user) {
		return ErrInvalidUser
	}
	if episodeIndex < 0 {
		episodeIndex = 0
	}

	s.mu.Lock()
	s.episodeProgress[userKey(entryID, user)] = episodeIndex
	err := writeJSON(s.file("episode_progress.json"), s.episodeProgress)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.mirrorAsync("episode progress "+entryID, func(ctx context.Context) error {
		return s.mirror.SetEpisodeProgress(ctx, entryID, user, episodeIndex)
	})

	return nil
}

// LastWatchedEpisode returns a member's last-watched episode index for an
// entry, 0 when unknown.
func (s *Service) LastWatchedEpisode(entryID string, user models.User) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.episodeProgress[userKey(entryID, user)]
	if idx < 0 {
		return 0
	}
	return idx
}

// ResumeEpisodeIndex picks where to resume a show. With a preferred member it
// is their own position; otherwise the later of the two positions, so either
// viewer lands on the furthest episode.
func (s *Service) ResumeEpisodeIndex(entryID string, preferred models.User) int {
	if models.ValidUser(preferred) {
		return s.LastWatchedEpisode(entryID, preferred)
	}

	jojo := s.LastWatchedEpisode(entryID, models.UserJoJo)
	dodo := s.LastWatchedEpisode(entryID, models.UserDoDo)
	if dodo > jojo {
		return dodo
	}
	return jojo
}

// SetEpisodeRating stores one member's rating for a single episode.
func (s *Service) SetEpisodeRating(entryID string, episode int, user models.User, value int) (models.DualRating, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return models.DualRating{}, ErrEntryIDRequired
	}
	if !models.ValidUser(user) {
		return models.DualRating{}, ErrInvalidUser
	}
	if !models.ValidRating(value) {
		return models.DualRating{}, ErrInvalidRating
	}

	key := episodeKey(entryID, episode)

	s.mu.Lock()
	rating := s.episodeRatings[key]
	rating.SetFor(user, value)
	s.episodeRatings[key] = rating
	err := writeJSON(s.file("episode_ratings.json"), s.episodeRatings)
	s.mu.Unlock()
	if err != nil {
		return models.DualRating{}, err
	}

	s.mirrorAsync("episode rating "+key, func(ctx context.Context) error {
		return s.mirror.SetEpisodeRating(ctx, entryID, episode, user, value)
	})

	return rating, nil
}

// EpisodeRating returns the stored dual rating for one episode. ok is false
// when nobody has rated it yet.
func (s *Service) EpisodeRating(entryID string, episode int) (models.DualRating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rating, ok := s.episodeRatings[episodeKey(entryID, episode)]
	if !ok {
		return models.DualRating{}, false
	}
	return rating.Normalized(), true
}

// SetEpisodeStatus stores a member's watched/upcoming flag for one episode.
func (s *Service) SetEpisodeStatus(entryID string, episode int, user models.User, status models.WatchStatus) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ErrEntryIDRequired
	}
	if !models.ValidUser(user) {
		return ErrInvalidUser
	}
	if !models.ValidWatchStatus(status) {
		return ErrInvalidStatus
	}

	s.mu.Lock()
	s.episodeStatus[episodeUserKey(entryID, episode, user)] = status
	err := writeJSON(s.file("episode_status.json"), s.episodeStatus)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.mirrorAsync("episode status "+episodeKey(entryID, episode), func(ctx context.Context) error {
		return s.mirror.SetEpisodeStatus(ctx, entryID, episode, user, status)
	})

	return nil
}

// EpisodeStatus returns a member's watch status for one episode. ok is false
// when nothing has been recorded; callers treat that as upcoming.
func (s *Service) EpisodeStatus(entryID string, episode int, user models.User) (models.WatchStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.episodeStatus[episodeUserKey(entryID, episode, user)]
	if !ok || !models.ValidWatchStatus(status) {
		return models.StatusUpcoming, false
	}
	return status, true
}

// AppendComment adds a message to one scope's thread for an entry. Threads
// are append-only; whitespace-only text is rejected and leaves the thread
// unchanged.
func (s *Service) AppendComment(entryID, text string, scope models.Scope) (models.Message, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return models.Message{}, ErrEntryIDRequired
	}
	if !models.ValidScope(scope) {
		return models.Message{}, ErrInvalidScope
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.Message{}, ErrEmptyComment
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Text:      trimmed,
		Sender:    scope,
		CreatedAt: time.Now().UnixMilli(),
	}

	key := commentKey(entryID, scope)

	s.mu.Lock()
	thread := append(s.comments[key], msg)
	s.comments[key] = thread
	err := writeJSON(s.file("comments.json"), s.comments)
	snapshot := make([]models.Message, len(thread))
	copy(snapshot, thread)
	s.mu.Unlock()
	if err != nil {
		return models.Message{}, err
	}

	s.mirrorAsync("comments "+key, func(ctx context.Context) error {
		return s.mirror.SetCommentThread(ctx, entryID, scope, snapshot)
	})

	return msg, nil
}

// CommentThread returns the union of the shared and per-member threads for an
// entry, sorted ascending by creation time.
func (s *Service) CommentThread(entryID string) []models.Message {
	s.mu.RLock()
	combined := make([]models.Message, 0)
	for _, scope := range models.Scopes() {
		combined = append(combined, s.comments[commentKey(entryID, scope)]...)
	}
	s.mu.RUnlock()

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].CreatedAt < combined[j].CreatedAt
	})

	return combined
}

// SelectedUser returns the persisted UI user preference.
func (s *Service) SelectedUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := models.User(s.preferences[selectedUserKey])
	if !models.ValidUser(user) {
		return "", false
	}
	return user, true
}

// SetSelectedUser persists the UI user preference. Local only, never
// mirrored.
func (s *Service) SetSelectedUser(user models.User) error {
	if !models.ValidUser(user) {
		return ErrInvalidUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[selectedUserKey] = string(user)
	return writeJSON(s.file("preferences.json"), s.preferences)
}

// DeleteEntryData removes every annotation keyed to an entry across all
// categories. Best-effort: one category failing to persist does not stop the
// cleanup of the others.
func (s *Service) DeleteEntryData(entryID string) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ErrEntryIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	delete(s.watchProgress, entryID)
	errs = append(errs, writeJSON(s.file("watch_progress.json"), s.watchProgress))

	delete(s.ratings, entryID)
	errs = append(errs, writeJSON(s.file("ratings.json"), s.ratings))

	for _, scope := range models.Scopes() {
		delete(s.comments, commentKey(entryID, scope))
	}
	errs = append(errs, writeJSON(s.file("comments.json"), s.comments))

	for _, user := range models.Users() {
		delete(s.episodeProgress, userKey(entryID, user))
	}
	errs = append(errs, writeJSON(s.file("episode_progress.json"), s.episodeProgress))

	prefix := entryID + "-ep"
	for key := range s.episodeRatings {
		if strings.HasPrefix(key, prefix) {
			delete(s.episodeRatings, key)
		}
	}
	errs = append(errs, writeJSON(s.file("episode_ratings.json"), s.episodeRatings))

	for key := range s.episodeStatus {
		if strings.HasPrefix(key, prefix) {
			delete(s.episodeStatus, key)
		}
	}
	errs = append(errs, writeJSON(s.file("episode_status.json"), s.episodeStatus))

	return errors.Join(errs...)
}

// TrimEpisodeData drops per-episode ratings and statuses above maxEpisode,
// so renumbering after a mid-list delete cannot leave stale high-numbered
// keys shadowing a future episode.
func (s *Service) TrimEpisodeData(entryID string, maxEpisode int) error {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ErrEntryIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key := range s.episodeRatings {
		if n, ok := episodeNumberFromKey(key, entryID); ok && n > maxEpisode {
			delete(s.episodeRatings, key)
			changed = true
		}
	}
	for key := range s.episodeStatus {
		if n, ok := episodeNumberFromKey(key, entryID); ok && n > maxEpisode {
			delete(s.episodeStatus, key)
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return errors.Join(
		writeJSON(s.file("episode_ratings.json"), s.episodeRatings),
		writeJSON(s.file("episode_status.json"), s.episodeStatus),
	)
}

// episodeNumberFromKey extracts N from "<entryID>-epN" or "<entryID>-epN-<user>".
func episodeNumberFromKey(key, entryID string) (int, bool) {
	rest, ok := strings.CutPrefix(key, entryID+"-ep")
	if !ok {
		return 0, false
	}
	if idx := strings.IndexByte(rest, '-'); idx >= 0 {
		rest = rest[:idx]
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
