package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// TraktorNML represents the root element of a Traktor NML export.
type TraktorNML struct {
	XMLName    xml.Name          `xml:"NML"`
	Version    int               `xml:"VERSION,attr"`
	Head       TraktorHead       `xml:"HEAD"`
	Collection TraktorCollection `xml:"COLLECTION"`
	Playlists  TraktorPlaylists  `xml:"PLAYLISTS"`
}

// TraktorHead contains metadata about the NML file.
type TraktorHead struct {
	Company string `xml:"COMPANY,attr"`
	Program string `xml:"PROGRAM,attr"`
}

// TraktorCollection holds all tracks in the collection.
type TraktorCollection struct {
	Entries int            `xml:"ENTRIES,attr"`
	Tracks  []TraktorEntry `xml:"ENTRY"`
}

// TraktorEntry represents a single track entry.
type TraktorEntry struct {
	Title      string            `xml:"TITLE,attr"`
	Artist     string            `xml:"ARTIST,attr,omitempty"`
	Location   TraktorLocation   `xml:"LOCATION"`
	Info       TraktorInfo       `xml:"INFO,omitempty"`
	Tempo      TraktorTempo      `xml:"TEMPO,omitempty"`
	MusicalKey TraktorMusicalKey `xml:"MUSICAL_KEY,omitempty"`
}

// TraktorLocation contains the file path information.
type TraktorLocation struct {
	Dir  string `xml:"DIR,attr"`
	File string `xml:"FILE,attr"`
}

// TraktorInfo contains track metadata.
type TraktorInfo struct {
	Bitrate  int    `xml:"BITRATE,attr,omitempty"`
	Genre    string `xml:"GENRE,attr,omitempty"`
	Key      string `xml:"KEY,attr,omitempty"`
	Playtime int    `xml:"PLAYTIME,attr,omitempty"`
}

// TraktorTempo contains BPM information.
type TraktorTempo struct {
	BPM float64 `xml:"BPM,attr"`
}

// TraktorMusicalKey encodes the detected key as Traktor's numeric
// Camelot-ish key index (0-23: minor keys 0-11, major keys 12-23).
type TraktorMusicalKey struct {
	Value int `xml:"VALUE,attr"`
}

func traktorKeyValue(number int, letter byte) int {
	idx := (number - 1) % 12
	if idx < 0 {
		idx += 12
	}
	if letter == 'B' {
		idx += 12
	}
	return idx
}

// TraktorPlaylists is the container for playlists.
type TraktorPlaylists struct {
	Node TraktorPlaylistNode `xml:"NODE"`
}

// TraktorPlaylistNode represents a playlist or folder.
type TraktorPlaylistNode struct {
	Type     string           `xml:"TYPE,attr"`
	Name     string           `xml:"NAME,attr"`
	Playlist TraktorPlaylist  `xml:"PLAYLIST"`
}

// TraktorPlaylist contains the actual playlist entries.
type TraktorPlaylist struct {
	Entries int                    `xml:"ENTRIES,attr"`
	Type    string                 `xml:"TYPE,attr"`
	Tracks  []TraktorPlaylistEntry `xml:"PLAYLISTENTRY"`
}

// TraktorPlaylistEntry references a track by its collection location.
type TraktorPlaylistEntry struct {
	Primary TraktorLocation `xml:"PRIMARYKEY"`
}

// WriteTraktor exports tracks to Traktor NML format.
func WriteTraktor(outputDir, playlistName string, tracks []TrackExport) (string, error) {
	if len(tracks) == 0 {
		return "", fmt.Errorf("no tracks to export")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	entries := make([]TraktorEntry, 0, len(tracks))
	playlistEntries := make([]TraktorPlaylistEntry, 0, len(tracks))

	for _, t := range tracks {
		r := t.Record
		loc := TraktorLocation{Dir: filepath.ToSlash(filepath.Dir(t.Path)) + "/", File: filepath.Base(t.Path)}

		entries = append(entries, TraktorEntry{
			Title:    titleOf(t),
			Artist:   t.Artist,
			Location: loc,
			Info: TraktorInfo{
				Bitrate:  t.BitrateKbps,
				Genre:    t.Genre,
				Key:      r.Camelot.String(),
				Playtime: int(r.DurationSeconds),
			},
			Tempo:      TraktorTempo{BPM: r.BPM},
			MusicalKey: TraktorMusicalKey{Value: traktorKeyValue(r.Camelot.Number, r.Camelot.Letter)},
		})
		playlistEntries = append(playlistEntries, TraktorPlaylistEntry{Primary: loc})
	}

	doc := TraktorNML{
		Version: 19,
		Head:    TraktorHead{Company: "www.native-instruments.com", Program: "Traktor"},
		Collection: TraktorCollection{
			Entries: len(entries),
			Tracks:  entries,
		},
		Playlists: TraktorPlaylists{
			Node: TraktorPlaylistNode{
				Type: "PLAYLIST",
				Name: playlistName,
				Playlist: TraktorPlaylist{
					Entries: len(playlistEntries),
					Type:    "LIST",
					Tracks:  playlistEntries,
				},
			},
		},
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, playlistName+".nml")
	content := append([]byte(xml.Header), data...)
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write traktor nml: %w", err)
	}
	return outputPath, nil
}
