package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/djcrate/engine/internal/index"
	"github.com/djcrate/engine/internal/model"
	"github.com/djcrate/engine/internal/suggest"
)

func runSuggest(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	dir := fs.String("dir", "", "library directory to analyze and index (required)")
	cacheDir := fs.String("cache-dir", defaultCacheDir(), "feature cache directory")
	weightsPath := fs.String("weights", defaultWeightsPath(), "scoring weights TOML file")
	track := fs.String("track", "", "path of the track to find suggestions for (required)")
	k := fs.Int("k", 5, "number of suggestions to return")
	minCompat := fs.Float64("min-compat", 0.5, "minimum compatibility score to include")
	surprise := fs.Bool("surprise", false, "also list surprise (±2 Camelot + energy uplift) picks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" || *track == "" {
		fs.Usage()
		return fmt.Errorf("-dir and -track are required")
	}

	records, err := loadLibrary(*dir, *cacheDir, *weightsPath, 0, logger)
	if err != nil {
		return err
	}

	var base model.FeatureRecord
	found := false
	byID := make(map[model.TrackId]model.FeatureRecord, len(records))
	for _, r := range records {
		byID[r.TrackID] = r
		if string(r.TrackID) == *track {
			base = r
			found = true
		}
	}
	if !found {
		return fmt.Errorf("track %q not found under %s", *track, *dir)
	}

	idx := index.Build(records)
	lookup := suggest.Lookup(func(id model.TrackId) (model.FeatureRecord, bool) {
		r, ok := byID[id]
		return r, ok
	})
	engine := suggest.New(idx, lookup)

	excluded := map[model.TrackId]bool{base.TrackID: true}
	for _, s := range engine.Similar(base, *k, excluded, *minCompat) {
		printSuggestion(s)
	}

	if *surprise {
		fmt.Fprintln(os.Stdout, "--- surprise picks ---")
		for _, s := range suggest.Surprise(base, records, *k) {
			printSuggestion(s)
		}
	}
	return nil
}

func printSuggestion(s suggest.Suggestion) {
	fmt.Fprintf(os.Stdout, "%-60s score=%.3f  %s\n", s.TrackID, s.Score, s.Reason)
}
