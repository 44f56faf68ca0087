package models

// MediaType distinguishes movies from TV shows.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// WatchStatus marks an entry or episode as already watched or planned.
type WatchStatus string

const (
	StatusWatched  WatchStatus = "watched"
	StatusUpcoming WatchStatus = "upcoming"
)

// ValidWatchStatus reports whether s is one of the two known statuses.
func ValidWatchStatus(s WatchStatus) bool {
	return s == StatusWatched || s == StatusUpcoming
}

// VideoMedia references a playable video for an entry, either a local file
// path or an embeddable link.
type VideoMedia struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type,omitempty"` // "local" | "embed"
}

// Episode belongs to a TV entry. Number is a 1-based display ordinal kept
// contiguous by the episode editor.
type Episode struct {
	Number  int         `json:"number"`
	Title   string      `json:"title"`
	Summary string      `json:"summary"`
	Date    string      `json:"date,omitempty"`
	Ratings *DualRating `json:"ratings,omitempty"`
	Status  WatchStatus `json:"status,omitempty"`
}

// Entry is one movie or TV show in the journal.
type Entry struct {
	ID                    string       `json:"id"`
	Title                 string       `json:"title"`
	OriginalTitle         string       `json:"originalTitle,omitempty"`
	Type                  MediaType    `json:"type"`
	Status                WatchStatus  `json:"status"`
	Genres                []string     `json:"genres,omitempty"`
	Date                  string       `json:"date"` // ISO date, used for sorting
	Rating                int          `json:"rating,omitempty"` // legacy single rating
	Ratings               *DualRating  `json:"ratings,omitempty"`
	Story                 string       `json:"story,omitempty"`  // watched entries
	Reason                string       `json:"reason,omitempty"` // upcoming entries
	PosterURL             string       `json:"posterUrl,omitempty"`
	Duration              string       `json:"duration,omitempty"` // e.g. "2h 11m"
	EpisodeRuntimeMinutes int          `json:"episodeRuntimeMinutes,omitempty"`
	Episodes              []Episode    `json:"episodes,omitempty"`
	Captures              []string     `json:"captures,omitempty"`
	Videos                []VideoMedia `json:"videos,omitempty"`

	// WatchProgress is derived at read time from the annotation store and
	// never persisted with the catalog.
	WatchProgress float64 `json:"watchProgress,omitempty"`
}
