package cache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/djcrate/engine/internal/model"
)

func writeTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func statOf(t *testing.T, path string) (int64, int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size(), info.ModTime().Unix()
}

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	trackPath := writeTempFile(t, dir, "track.mp3")
	trackID := model.Normalize(trackPath)
	size, mtime := statOf(t, trackPath)

	rec := model.FeatureRecord{TrackID: trackID, BPM: 128, EnergyScore: 7}
	if err := c.Put(trackID, size, mtime, "profile-v1", rec); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(trackID, size, mtime, "profile-v1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.BPM != 128 {
		t.Errorf("BPM = %v, want 128", got.BPM)
	}
}

func TestGetMissAfterMtimeChange(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	trackPath := writeTempFile(t, dir, "track.mp3")
	trackID := model.Normalize(trackPath)
	size, mtime := statOf(t, trackPath)

	rec := model.FeatureRecord{TrackID: trackID, BPM: 128}
	if err := c.Put(trackID, size, mtime, "profile-v1", rec); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(10 * time.Second)
	if err := os.Chtimes(trackPath, future, future); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Get(trackID, size, mtime, "profile-v1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected miss with stale mtime key, got hit")
	}
}

func TestEvictEmptyCacheDoesNotError(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Evict(0, 0); err != nil {
		t.Errorf("Evict on empty cache: %v", err)
	}
}

func TestOptimizeDropsBrokenEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	trackPath := writeTempFile(t, dir, "track.mp3")
	trackID := model.Normalize(trackPath)
	size, mtime := statOf(t, trackPath)
	if err := c.Put(trackID, size, mtime, "profile-v1", model.FeatureRecord{TrackID: trackID}); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(trackPath); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Optimize()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Optimize removed = %d, want 1", removed)
	}
}

func TestGetOrExtractCoalescesConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	trackPath := writeTempFile(t, dir, "track.mp3")
	trackID := model.Normalize(trackPath)
	size, mtime := statOf(t, trackPath)

	var calls int64
	extract := func() (model.FeatureRecord, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return model.FeatureRecord{TrackID: trackID, BPM: 140}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := c.GetOrExtract(trackID, size, mtime, "profile-v1", extract)
			if err != nil {
				t.Error(err)
			}
			if rec.BPM != 140 {
				t.Errorf("BPM = %v, want 140", rec.BPM)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("extract called %d times, want exactly 1", got)
	}
}
