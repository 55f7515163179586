package export

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf16"
)

// Serato crate files use a simple binary format with versioning and
// track paths — there is no public schema, only the format reverse
// engineers have converged on.
const (
	seratoCrateVersion = "81.0"
	seratoCrateMagic   = "vrsn"
	seratoTrackMagic   = "otrk"
	seratoPathMagic    = "ptrk"
)

// WriteSerato exports tracks to a Serato DJ crate (.crate) file, plus a
// supplementary CSV with the analysis data Serato's own crate format
// has no room for.
func WriteSerato(outputDir, playlistName string, tracks []TrackExport) (string, error) {
	if len(tracks) == 0 {
		return "", fmt.Errorf("no tracks to export")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	versionBytes := encodeUTF16BE(seratoCrateVersion)
	buf.WriteString(seratoCrateMagic)
	binary.Write(&buf, binary.BigEndian, uint32(len(versionBytes)))
	buf.Write(versionBytes)

	for _, t := range tracks {
		absPath, err := filepath.Abs(t.Path)
		if err != nil {
			absPath = t.Path
		}
		pathBytes := encodeUTF16BE(absPath)

		var pathChunk bytes.Buffer
		pathChunk.WriteString(seratoPathMagic)
		binary.Write(&pathChunk, binary.BigEndian, uint32(len(pathBytes)))
		pathChunk.Write(pathBytes)

		buf.WriteString(seratoTrackMagic)
		binary.Write(&buf, binary.BigEndian, uint32(pathChunk.Len()))
		buf.Write(pathChunk.Bytes())
	}

	outputPath := filepath.Join(outputDir, playlistName+".crate")
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write serato crate: %w", err)
	}

	csvPath := filepath.Join(outputDir, playlistName+"-serato-analysis.csv")
	if err := writeSeratoAnalysisCSV(csvPath, tracks); err != nil {
		return outputPath, nil // crate file itself still wrote successfully
	}

	return outputPath, nil
}

// encodeUTF16BE encodes a string as UTF-16 Big Endian, Serato's string
// encoding throughout the crate format.
func encodeUTF16BE(s string) []byte {
	runes := []rune(s)
	u16 := utf16.Encode(runes)

	buf := make([]byte, len(u16)*2)
	for i, r := range u16 {
		buf[i*2] = byte(r >> 8)
		buf[i*2+1] = byte(r)
	}
	return buf
}

// writeSeratoAnalysisCSV writes a supplementary CSV with BPM/key/energy
// data: Serato stores its own analysis in ID3 GEOB tags it writes
// itself, so this is reference data for the DJ, not an import format.
func writeSeratoAnalysisCSV(path string, tracks []TrackExport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"path", "bpm", "camelot", "energy"}); err != nil {
		return err
	}
	for _, t := range tracks {
		r := t.Record
		if err := writer.Write([]string{
			t.Path,
			fmt.Sprintf("%.2f", r.BPM),
			r.Camelot.String(),
			fmt.Sprintf("%.1f", r.EnergyScore),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
