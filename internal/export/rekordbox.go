package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// RekordboxXML is the root element of a Rekordbox XML export.
type RekordboxXML struct {
	XMLName    xml.Name            `xml:"DJ_PLAYLISTS"`
	Version    string              `xml:"Version,attr"`
	Product    RekordboxProduct    `xml:"PRODUCT"`
	Collection RekordboxCollection `xml:"COLLECTION"`
	Playlists  RekordboxPlaylists  `xml:"PLAYLISTS"`
}

// RekordboxProduct identifies the exporting application.
type RekordboxProduct struct {
	Name    string `xml:"Name,attr"`
	Version string `xml:"Version,attr"`
	Company string `xml:"Company,attr"`
}

// RekordboxCollection holds all tracks.
type RekordboxCollection struct {
	Entries int              `xml:"Entries,attr"`
	Tracks  []RekordboxTrack `xml:"TRACK"`
}

// RekordboxTrack represents a single track in Rekordbox format.
type RekordboxTrack struct {
	TrackID    int    `xml:"TrackID,attr"`
	Name       string `xml:"Name,attr"`
	Artist     string `xml:"Artist,attr"`
	Album      string `xml:"Album,attr,omitempty"`
	Genre      string `xml:"Genre,attr,omitempty"`
	TotalTime  int    `xml:"TotalTime,attr"`
	BitRate    int    `xml:"BitRate,attr,omitempty"`
	AverageBpm string `xml:"AverageBpm,attr"`
	Tonality   string `xml:"Tonality,attr,omitempty"`
	Location   string `xml:"Location,attr"`
	Tempo      []RekordboxTempo `xml:"TEMPO,omitempty"`
}

// RekordboxTempo represents a single tempo marker; since the feature
// pipeline produces one BPM per track rather than a beatgrid, each
// track carries exactly one marker anchored at its start.
type RekordboxTempo struct {
	Inizio string `xml:"Inizio,attr"`
	Bpm    string `xml:"Bpm,attr"`
	Metro  string `xml:"Metro,attr"`
	Battito int   `xml:"Battito,attr"`
}

// RekordboxPlaylists is the playlists container.
type RekordboxPlaylists struct {
	Node RekordboxPlaylistNode `xml:"NODE"`
}

// RekordboxPlaylistNode represents a playlist folder or playlist.
type RekordboxPlaylistNode struct {
	Type    int                       `xml:"Type,attr"`
	Name    string                    `xml:"Name,attr"`
	Entries int                       `xml:"Entries,attr,omitempty"`
	Tracks  []RekordboxPlaylistTrack  `xml:"TRACK,omitempty"`
}

// RekordboxPlaylistTrack is a track reference in a playlist.
type RekordboxPlaylistTrack struct {
	Key int `xml:"Key,attr"`
}

// WriteRekordbox exports tracks to Rekordbox XML format.
func WriteRekordbox(outputDir, playlistName string, tracks []TrackExport) (string, error) {
	if len(tracks) == 0 {
		return "", fmt.Errorf("no tracks to export")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	rbTracks := make([]RekordboxTrack, 0, len(tracks))
	playlistTracks := make([]RekordboxPlaylistTrack, 0, len(tracks))

	for i, t := range tracks {
		trackID := i + 1
		r := t.Record

		rbTracks = append(rbTracks, RekordboxTrack{
			TrackID:    trackID,
			Name:       titleOf(t),
			Artist:     t.Artist,
			Album:      t.Album,
			Genre:      t.Genre,
			TotalTime:  int(r.DurationSeconds),
			BitRate:    t.BitrateKbps,
			AverageBpm: strconv.FormatFloat(r.BPM, 'f', 2, 64),
			Tonality:   r.Camelot.String(),
			Location:   "file://localhost" + filepath.ToSlash(t.Path),
			Tempo: []RekordboxTempo{{
				Inizio:  "0.000",
				Bpm:     strconv.FormatFloat(r.BPM, 'f', 2, 64),
				Metro:   "4/4",
				Battito: 1,
			}},
		})
		playlistTracks = append(playlistTracks, RekordboxPlaylistTrack{Key: trackID})
	}

	doc := RekordboxXML{
		Version: "1.0.0",
		Product: RekordboxProduct{Name: "rekordbox", Version: "6.0.0", Company: "AlphaTheta"},
		Collection: RekordboxCollection{
			Entries: len(rbTracks),
			Tracks:  rbTracks,
		},
		Playlists: RekordboxPlaylists{
			Node: RekordboxPlaylistNode{
				Type:    1,
				Name:    playlistName,
				Entries: len(playlistTracks),
				Tracks:  playlistTracks,
			},
		},
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, playlistName+".xml")
	content := append([]byte(xml.Header), data...)
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write rekordbox xml: %w", err)
	}
	return outputPath, nil
}
