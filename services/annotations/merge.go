package annotations

import "movienight/models"

// The Merge* methods are the write side of startup reconciliation: each takes
// a remote sub-tree already flattened to this store's key scheme and imports
// only the keys that do not exist locally. A key present locally always wins.
// Nothing is written to disk when the merge changes nothing, which keeps a
// second reconciliation in the same session write-free.

// MergeWatchProgress fills missing playback positions from remote data.
func (s *Service) MergeWatchProgress(remote map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key, seconds := range remote {
		if _, ok := s.watchProgress[key]; ok {
			continue
		}
		s.watchProgress[key] = models.NormalizeSeconds(seconds)
		changed = true
	}

	if !changed {
		return nil
	}
	return writeJSON(s.file("watch_progress.json"), s.watchProgress)
}

// MergeRatings fills missing entry ratings from remote data.
func (s *Service) MergeRatings(remote map[string]models.DualRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key, rating := range remote {
		if _, ok := s.ratings[key]; ok {
			continue
		}
		s.ratings[key] = rating.Normalized()
		changed = true
	}

	if !changed {
		return nil
	}
	return writeJSON(s.file("ratings.json"), s.ratings)
}

// MergeComments imports remote threads for entry/scope keys with no local
// thread. Imported threads are taken verbatim.
func (s *Service) MergeComments(remote map[string][]models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key, thread := range remote {
		if _, ok := s.comments[key]; ok {
			continue
		}
		if len(thread) == 0 {
			continue
		}
		s.comments[key] = thread
		changed = true
	}

	if !changed {
		return nil
	}
	return writeJSON(s.file("comments.json"), s.comments)
}

// MergeEpisodeProgress fills missing per-member episode positions.
func (s *Service) MergeEpisodeProgress(remote map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key, idx := range remote {
		if _, ok := s.episodeProgress[key]; ok {
			continue
		}
		if idx < 0 {
			idx = 0
		}
		s.episodeProgress[key] = idx
		changed = true
	}

	if !changed {
		return nil
	}
	return writeJSON(s.file("episode_progress.json"), s.episodeProgress)
}

// MergeEpisodeRatings fills missing per-episode ratings.
func (s *Service) MergeEpisodeRatings(remote map[string]models.DualRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key, rating := range remote {
		if _, ok := s.episodeRatings[key]; ok {
			continue
		}
		s.episodeRatings[key] = rating.Normalized()
		changed = true
	}

	if !changed {
		return nil
	}
	return writeJSON(s.file("episode_ratings.json"), s.episodeRatings)
}

// MergeEpisodeStatus fills missing per-episode, per-member statuses.
func (s *Service) MergeEpisodeStatus(remote map[string]models.WatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for key, status := range remote {
		if _, ok := s.episodeStatus[key]; ok {
			continue
		}
		if !models.ValidWatchStatus(status) {
			continue
		}
		s.episodeStatus[key] = status
		changed = true
	}

	if !changed {
		return nil
	}
	return writeJSON(s.file("episode_status.json"), s.episodeStatus)
}
