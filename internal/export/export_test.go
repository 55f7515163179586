package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/djcrate/engine/internal/model"
)

func sampleTracks() []TrackExport {
	return []TrackExport{
		{
			Path:   "/music/a.mp3",
			Title:  "Track A",
			Artist: "Artist A",
			Record: model.FeatureRecord{
				TrackID:         "a",
				BPM:             128,
				DurationSeconds: 210,
				Camelot:         model.CamelotCode{Number: 8, Letter: 'A'},
				EnergyScore:     7,
			},
		},
		{
			Path:   "/music/b.mp3",
			Title:  "Track B",
			Artist: "Artist B",
			Record: model.FeatureRecord{
				TrackID:         "b",
				BPM:             130,
				DurationSeconds: 195,
				Camelot:         model.CamelotCode{Number: 9, Letter: 'A'},
				EnergyScore:     8,
			},
		},
	}
}

func TestWriteM3U8ContainsEveryTrack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.m3u8")
	if err := WriteM3U8(path, sampleTracks()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "#EXTM3U") {
		t.Error("m3u8 must start with #EXTM3U")
	}
	if !strings.Contains(content, "/music/a.mp3") || !strings.Contains(content, "/music/b.mp3") {
		t.Error("m3u8 missing a track path")
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.json")
	if err := WriteJSON(path, sampleTracks()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var docs []analysisDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].Record.BPM != 128 {
		t.Errorf("BPM = %v, want 128", docs[0].Record.BPM)
	}
}

func TestWriteCSVHasHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.csv")
	if err := WriteCSV(path, sampleTracks()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 { // header + 2 tracks
		t.Errorf("len(lines) = %d, want 3", len(lines))
	}
}

func TestWriteGenericProducesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	result, err := WriteGeneric(dir, "myset", sampleTracks())
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{result.PlaylistPath, result.AnalysisJSONPath, result.CuesCSVPath, result.BundlePath, result.ChecksumsPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected artifact at %s: %v", path, err)
		}
	}
}

func TestWriteGenericRejectsEmptyTrackList(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteGeneric(dir, "empty", nil); err == nil {
		t.Error("expected an error for an empty track list")
	}
}

func TestWriteRekordboxProducesValidXML(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteRekordbox(dir, "myset", sampleTracks())
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "DJ_PLAYLISTS") {
		t.Error("expected DJ_PLAYLISTS root element")
	}
}

func TestWriteTraktorProducesValidXML(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTraktor(dir, "myset", sampleTracks())
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<NML") {
		t.Error("expected NML root element")
	}
}

func TestWriteSeratoProducesCrateFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSerato(dir, "myset", sampleTracks())
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), seratoCrateMagic) {
		t.Error("crate file should start with the vrsn magic")
	}
}

func TestTraktorKeyValueMapsLetterToOffsetRange(t *testing.T) {
	minor := traktorKeyValue(1, 'A')
	major := traktorKeyValue(1, 'B')
	if minor < 0 || minor > 11 {
		t.Errorf("minor key value = %d, want in [0,11]", minor)
	}
	if major < 12 || major > 23 {
		t.Errorf("major key value = %d, want in [12,23]", major)
	}
}
