package annotations_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"movienight/models"
	"movienight/services/annotations"
)

func TestMergeFillsGapsOnly(t *testing.T) {
	svc := newService(t)

	if _, err := svc.SetRating("1", models.UserJoJo, 5); err != nil {
		t.Fatalf("set rating: %v", err)
	}

	err := svc.MergeRatings(map[string]models.DualRating{
		"1": {JoJo: 2, DoDo: 2}, // conflicts with local, must lose
		"2": {JoJo: 3, DoDo: 0}, // absent locally, must be imported
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	local, ok := svc.Rating("1")
	if !ok || local.JoJo != 5 {
		t.Fatalf("local rating overwritten by remote: %+v", local)
	}
	imported, ok := svc.Rating("2")
	if !ok || imported.JoJo != 3 {
		t.Fatalf("remote rating not imported: %+v ok=%v", imported, ok)
	}
}

func TestMergeEpisodeProgressLocalWins(t *testing.T) {
	svc := newService(t)

	if err := svc.SetEpisodeProgress("1", models.UserJoJo, 5); err != nil {
		t.Fatalf("set progress: %v", err)
	}

	if err := svc.MergeEpisodeProgress(map[string]int{"1-jojo": 2, "1-dodo": 4}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if got := svc.ResumeEpisodeIndex("1", models.UserJoJo); got != 5 {
		t.Fatalf("local episode progress overwritten: %d", got)
	}
	if got := svc.ResumeEpisodeIndex("1", models.UserDoDo); got != 4 {
		t.Fatalf("remote gap not filled: %d", got)
	}
}

func TestMergeWithoutChangesWritesNothing(t *testing.T) {
	dir := t.TempDir()
	svc, err := annotations.NewService(dir, nil)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if _, err := svc.SetRating("1", models.UserJoJo, 4); err != nil {
		t.Fatalf("set rating: %v", err)
	}

	path := filepath.Join(dir, "ratings.json")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat ratings: %v", err)
	}

	// Every remote key already exists locally, so no write should happen.
	if err := svc.MergeRatings(map[string]models.DualRating{"1": {JoJo: 1, DoDo: 1}}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat ratings: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) || after.Size() != before.Size() {
		t.Fatal("merge with no changes rewrote the ratings file")
	}
}

func TestMergeCommentsImportsVerbatim(t *testing.T) {
	svc := newService(t)

	remoteThread := []models.Message{
		{ID: "r1", Text: "from the cloud", Sender: models.ScopeShared, CreatedAt: 100},
	}
	if err := svc.MergeComments(map[string][]models.Message{"1-shared": remoteThread}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	thread := svc.CommentThread("1")
	if len(thread) != 1 || thread[0].ID != "r1" {
		t.Fatalf("remote thread not imported verbatim: %+v", thread)
	}
}

func TestMergedStatePersists(t *testing.T) {
	dir := t.TempDir()
	svc, err := annotations.NewService(dir, nil)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	if err := svc.MergeWatchProgress(map[string]float64{"9": 45}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "watch_progress.json"))
	if err != nil {
		t.Fatalf("read watch progress file: %v", err)
	}
	var stored map[string]float64
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("parse watch progress file: %v", err)
	}
	if stored["9"] != 45 {
		t.Fatalf("merged value not persisted: %v", stored)
	}
}
