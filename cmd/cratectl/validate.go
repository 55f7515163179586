package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/djcrate/engine/internal/config"
	"github.com/djcrate/engine/internal/model"
	"github.com/djcrate/engine/internal/tagread"
	"github.com/djcrate/engine/internal/validator"
)

func runValidate(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	dir := fs.String("dir", "", "playlist directory, in play order (required)")
	cacheDir := fs.String("cache-dir", defaultCacheDir(), "feature cache directory")
	weightsPath := fs.String("weights", defaultWeightsPath(), "scoring weights TOML file")
	fix := fs.Bool("fix", false, "apply auto-fixes for fixable issues and re-report")
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

	tracks := make([]validator.TrackMeta, len(records))
	for i, r := range records {
		path := string(r.TrackID)
		meta := validator.TrackMeta{Record: r, FilePath: path}
		if tag, err := tagread.Read(path); err == nil {
			meta.Artist = tag.Artist
			meta.Genre = tag.Genre
			meta.BitrateKbps = tag.BitrateKbps
		}
		tracks[i] = meta
	}

	loaded, err := config.LoadWeights(*weightsPath)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	weights := loaded.ValidatorWeights()
	score, issues := validator.Validate(tracks, weights)
	printValidation(score, issues)

	if *fix {
		_, fixedScore, fixedIssues := validator.ApplyAutoFixes(tracks, issues, weights)
		fmt.Fprintln(os.Stdout, "--- after auto-fix ---")
		printValidation(fixedScore, fixedIssues)
	}
	return nil
}

func printValidation(score float64, issues []model.Issue) {
	fmt.Fprintf(os.Stdout, "quality score: %.1f/100\n", score)
	for _, issue := range issues {
		fixable := ""
		if issue.AutoFixable {
			fixable = " [auto-fixable]"
		}
		fmt.Fprintf(os.Stdout, "[%s] %s: %s%s\n", issue.Kind, issue.Category, issue.Message, fixable)
	}
}
