// Package export serializes a solved playlist to the formats spec §6
// names: plain JSON, M3U8, CSV, and the vendor DJ-software formats
// (Rekordbox XML, Traktor NML, Serato crate).
package export

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/djcrate/engine/internal/model"
)

// TrackExport bundles a track's resolved file path, its analysis
// record, and the tag-derived metadata the vendor formats expect.
type TrackExport struct {
	Path        string
	Record      model.FeatureRecord
	Title       string
	Artist      string
	Album       string
	Genre       string
	BitrateKbps int
}

func titleOf(t TrackExport) string {
	if t.Title != "" {
		return t.Title
	}
	return filepath.Base(t.Path)
}

// Result collects the paths of every artifact WriteGeneric produced.
type Result struct {
	PlaylistPath     string
	AnalysisJSONPath string
	CuesCSVPath      string
	BundlePath       string
	ChecksumsPath    string
}

// WriteGeneric writes the three format-agnostic exports spec §6
// names (JSON, M3U8, CSV), then a checksum manifest and a tar.gz
// bundle of those three files plus the manifest for convenient sharing.
func WriteGeneric(outputDir, playlistName string, tracks []TrackExport) (*Result, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks to export")
	}
	if playlistName == "" {
		playlistName = "set"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	result := &Result{
		PlaylistPath:     filepath.Join(outputDir, playlistName+".m3u8"),
		AnalysisJSONPath: filepath.Join(outputDir, playlistName+"-analysis.json"),
		CuesCSVPath:      filepath.Join(outputDir, playlistName+"-tracks.csv"),
		BundlePath:       filepath.Join(outputDir, playlistName+"-bundle.tar.gz"),
		ChecksumsPath:    filepath.Join(outputDir, playlistName+"-checksums.txt"),
	}

	if err := WriteM3U8(result.PlaylistPath, tracks); err != nil {
		return nil, err
	}
	if err := WriteJSON(result.AnalysisJSONPath, tracks); err != nil {
		return nil, err
	}
	if err := WriteCSV(result.CuesCSVPath, tracks); err != nil {
		return nil, err
	}
	if err := writeChecksums(result.ChecksumsPath, result.PlaylistPath, result.AnalysisJSONPath, result.CuesCSVPath); err != nil {
		return nil, err
	}
	if err := writeBundle(result.BundlePath, result.PlaylistPath, result.AnalysisJSONPath, result.CuesCSVPath, result.ChecksumsPath); err != nil {
		return nil, err
	}

	return result, nil
}

// WriteM3U8 writes a standard Extended M3U playlist.
func WriteM3U8(path string, tracks []TrackExport) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, t := range tracks {
		duration := int(t.Record.DurationSeconds)
		b.WriteString(fmt.Sprintf("#EXTINF:%d,%s\n", duration, titleOf(t)))
		b.WriteString(t.Path + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// analysisDoc is the JSON shape written for each track: the full
// FeatureRecord plus the path/tag fields the record itself doesn't
// carry.
type analysisDoc struct {
	Path   string             `json:"path"`
	Title  string             `json:"title"`
	Artist string             `json:"artist,omitempty"`
	Album  string             `json:"album,omitempty"`
	Genre  string             `json:"genre,omitempty"`
	Record model.FeatureRecord `json:"analysis"`
}

// WriteJSON writes the full per-track analysis as a JSON array.
func WriteJSON(path string, tracks []TrackExport) error {
	docs := make([]analysisDoc, len(tracks))
	for i, t := range tracks {
		docs[i] = analysisDoc{
			Path:   t.Path,
			Title:  titleOf(t),
			Artist: t.Artist,
			Album:  t.Album,
			Genre:  t.Genre,
			Record: t.Record,
		}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteCSV writes one row per track with the fields a DJ would scan
// at a glance: path, title, artist, BPM, key, energy, mood.
func WriteCSV(path string, tracks []TrackExport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"path", "title", "artist", "bpm", "camelot", "key", "energy", "mood"}); err != nil {
		return err
	}
	for _, t := range tracks {
		r := t.Record
		if err := writer.Write([]string{
			t.Path,
			titleOf(t),
			t.Artist,
			fmt.Sprintf("%.1f", r.BPM),
			r.Camelot.String(),
			r.Key.String(),
			fmt.Sprintf("%.1f", r.EnergyScore),
			r.MoodLabel.String(),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeChecksums(path string, files ...string) error {
	var b strings.Builder
	for _, fp := range files {
		sum, err := FileSHA256(fp)
		if err != nil {
			return err
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", sum, filepath.Base(fp)))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeBundle(bundlePath string, files ...string) error {
	f, err := os.Create(bundlePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, fp := range files {
		info, err := os.Stat(fp)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.Base(fp)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		data, err := os.ReadFile(fp)
		if err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// FileSHA256 hashes a file's contents for the checksum manifest.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
