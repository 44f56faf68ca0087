package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"movienight/models"
	"movienight/services/remote"
	syncsvc "movienight/services/sync"
)

type fakeSource struct {
	snap  *remote.Snapshot
	err   error
	calls int
}

func (f *fakeSource) Snapshot(ctx context.Context) (*remote.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeStore struct {
	watchProgress   map[string]float64
	ratings         map[string]models.DualRating
	comments        map[string][]models.Message
	episodeProgress map[string]int
	episodeRatings  map[string]models.DualRating
	episodeStatus   map[string]models.WatchStatus
	mergeCalls      int
}

func (f *fakeStore) MergeWatchProgress(m map[string]float64) error {
	f.mergeCalls++
	f.watchProgress = m
	return nil
}

func (f *fakeStore) MergeRatings(m map[string]models.DualRating) error {
	f.mergeCalls++
	f.ratings = m
	return nil
}

func (f *fakeStore) MergeComments(m map[string][]models.Message) error {
	f.mergeCalls++
	f.comments = m
	return nil
}

func (f *fakeStore) MergeEpisodeProgress(m map[string]int) error {
	f.mergeCalls++
	f.episodeProgress = m
	return nil
}

func (f *fakeStore) MergeEpisodeRatings(m map[string]models.DualRating) error {
	f.mergeCalls++
	f.episodeRatings = m
	return nil
}

func (f *fakeStore) MergeEpisodeStatus(m map[string]models.WatchStatus) error {
	f.mergeCalls++
	f.episodeStatus = m
	return nil
}

func fptr(v float64) *float64 { return &v }

func TestRunFlattensRemoteSnapshot(t *testing.T) {
	source := &fakeSource{snap: &remote.Snapshot{
		WatchProgress: map[string]float64{"1": 90},
		Ratings: map[string]remote.UserValues{
			"1": {JoJo: fptr(4)},
		},
		EpisodeProgress: map[string]remote.UserValues{
			"2": {JoJo: fptr(3), DoDo: fptr(5)},
		},
		EpisodeRatings: map[string]map[string]remote.UserValues{
			"2": {"ep3": {DoDo: fptr(5)}},
		},
		EpisodeStatus: map[string]map[string]remote.UserStatuses{
			"2": {"ep3": {JoJo: models.StatusWatched, DoDo: "bogus"}},
		},
	}}
	store := &fakeStore{}
	rec := syncsvc.New(source, store)

	require.Equal(t, syncsvc.StateUninitialized, rec.State())
	rec.Run(context.Background())
	require.Equal(t, syncsvc.StateReconciled, rec.State())

	require.Equal(t, map[string]float64{"1": 90}, store.watchProgress)
	require.Equal(t, map[string]models.DualRating{"1": {JoJo: 4, DoDo: 0}}, store.ratings)
	require.Equal(t, map[string]int{"2-jojo": 3, "2-dodo": 5}, store.episodeProgress)
	require.Equal(t, map[string]models.DualRating{"2-ep3": {JoJo: 0, DoDo: 5}}, store.episodeRatings)
	require.Equal(t, map[string]models.WatchStatus{"2-ep3-jojo": models.StatusWatched}, store.episodeStatus)
}

func TestRunIsOncePerSession(t *testing.T) {
	source := &fakeSource{snap: &remote.Snapshot{
		WatchProgress: map[string]float64{"1": 10},
	}}
	store := &fakeStore{}
	rec := syncsvc.New(source, store)

	rec.Run(context.Background())
	rec.Run(context.Background())

	require.Equal(t, 1, source.calls, "snapshot should be fetched once")
	require.Equal(t, 1, store.mergeCalls, "merges should run once")

	rec.Reset()
	require.Equal(t, syncsvc.StateUninitialized, rec.State())
	rec.Run(context.Background())
	require.Equal(t, 2, source.calls, "reset should allow another run")
}

func TestRunSwallowsSourceErrors(t *testing.T) {
	source := &fakeSource{err: errors.New("permission denied")}
	store := &fakeStore{}
	rec := syncsvc.New(source, store)

	rec.Run(context.Background())

	require.Equal(t, syncsvc.StateReconciled, rec.State(), "failed fetch still ends the session's reconciliation")
	require.Zero(t, store.mergeCalls, "nothing should be merged on fetch failure")
}

func TestRunConvertsLegacyStringComments(t *testing.T) {
	legacy, err := json.Marshal("we loved this one")
	require.NoError(t, err)
	thread, err := json.Marshal([]models.Message{
		{ID: "m1", Text: "hi", Sender: models.ScopeJoJo, CreatedAt: 5},
		{Text: "no id or sender", CreatedAt: 9},
	})
	require.NoError(t, err)

	source := &fakeSource{snap: &remote.Snapshot{
		Comments: map[string]remote.ScopeThreads{
			"1": {Shared: legacy, JoJo: thread},
		},
	}}
	store := &fakeStore{}
	rec := syncsvc.New(source, store)

	rec.Run(context.Background())

	shared := store.comments["1-shared"]
	require.Len(t, shared, 1)
	require.Equal(t, "we loved this one", shared[0].Text)
	require.Equal(t, models.ScopeShared, shared[0].Sender)
	require.NotEmpty(t, shared[0].ID)
	require.Positive(t, shared[0].CreatedAt)

	jojo := store.comments["1-jojo"]
	require.Len(t, jojo, 2)
	require.Equal(t, "m1", jojo[0].ID)
	require.NotEmpty(t, jojo[1].ID, "missing message ids are filled in")
	require.Equal(t, models.ScopeJoJo, jojo[1].Sender, "missing senders default to the scope")
}

func TestRunWithEmptySnapshotMergesNothing(t *testing.T) {
	source := &fakeSource{snap: nil}
	store := &fakeStore{}
	rec := syncsvc.New(source, store)

	rec.Run(context.Background())

	require.Equal(t, syncsvc.StateReconciled, rec.State())
	require.Zero(t, store.mergeCalls)
}
