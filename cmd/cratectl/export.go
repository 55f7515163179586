package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/djcrate/engine/internal/export"
	"github.com/djcrate/engine/internal/tagread"
)

func runExport(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fs.String("dir", "", "playlist directory, in play order (required)")
	cacheDir := fs.String("cache-dir", defaultCacheDir(), "feature cache directory")
	weightsPath := fs.String("weights", defaultWeightsPath(), "scoring weights TOML file")
	outDir := fs.String("out", "./export", "output directory for export artifacts")
	name := fs.String("name", "set", "playlist name, used as the output file base name")
	format := fs.String("format", "generic", "export format: generic, rekordbox, traktor, serato")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		fs.Usage()
		return fmt.Errorf("-dir is required")
	}

	records, err := loadLibrary(*dir, *cacheDir, *weightsPath, 0, logger)
	if err != nil {
		return err
	}

	tracks := make([]export.TrackExport, len(records))
	for i, r := range records {
		path := string(r.TrackID)
		te := export.TrackExport{Path: path, Record: r}
		if tag, err := tagread.Read(path); err == nil {
			te.Title = tag.Title
			te.Artist = tag.Artist
			te.Album = tag.Album
			te.Genre = tag.Genre
			te.BitrateKbps = tag.BitrateKbps
		}
		tracks[i] = te
	}

	switch *format {
	case "generic":
		result, err := export.WriteGeneric(*outDir, *name, tracks)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s, %s, %s, %s, %s\n",
			result.PlaylistPath, result.AnalysisJSONPath, result.CuesCSVPath, result.ChecksumsPath, result.BundlePath)
	case "rekordbox":
		path, err := export.WriteRekordbox(*outDir, *name, tracks)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	case "traktor":
		path, err := export.WriteTraktor(*outDir, *name, tracks)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	case "serato":
		path, err := export.WriteSerato(*outDir, *name, tracks)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	default:
		return fmt.Errorf("unknown format %q (want generic, rekordbox, traktor, or serato)", *format)
	}
	return nil
}
