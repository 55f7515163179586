// Package tagread reads the ID3/Vorbis/MP4 tag metadata the feature
// extraction pipeline doesn't produce on its own: artist, album, genre,
// title, and bitrate. The solver and validator work entirely in terms
// of audio features, but the export formats (Rekordbox, Traktor,
// Serato, the plain CSV/JSON) need this metadata to be useful to a DJ.
package tagread

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
)

// Metadata is the subset of tag fields every export format wants.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	BitrateKbps int
}

// Read opens path and extracts its tag metadata. A missing title falls
// back to the filename, since plenty of tracks are tagged with
// everything but a title.
func Read(path string) (Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return Metadata{}, fmt.Errorf("read tags from %s: %w", path, err)
	}

	title := m.Title()
	if title == "" {
		title = filepath.Base(path)
	}

	return Metadata{
		Title:       title,
		Artist:      m.Artist(),
		Album:       m.Album(),
		Genre:       m.Genre(),
		BitrateKbps: bitrateFromRaw(m.Raw()),
	}, nil
}

// bitrateFromRaw looks for a bitrate hint in the format-specific raw
// tag map; the tag library doesn't normalize one across formats, and
// most files don't carry it at all, in which case 0 just means
// "unknown" to every caller.
func bitrateFromRaw(raw map[string]any) int {
	for _, key := range []string{"bitrate", "Bitrate", "TBIT"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}
