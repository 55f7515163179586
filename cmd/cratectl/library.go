package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/djcrate/engine/internal/cache"
	"github.com/djcrate/engine/internal/config"
	"github.com/djcrate/engine/internal/decode"
	"github.com/djcrate/engine/internal/extract"
	"github.com/djcrate/engine/internal/extract/mood"
	"github.com/djcrate/engine/internal/model"
	"github.com/djcrate/engine/internal/pool"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
}

// walkAudioFiles returns every audio file under dir, or dir itself if
// it names a single file.
func walkAudioFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// loadLibrary extracts (or reuses cached) features for every audio
// file under dir, fanning extraction out across a worker pool. The
// extractor's energy-score weights are loaded from weightsPath (the
// defaults if the file doesn't exist).
func loadLibrary(dir, cacheDir, weightsPath string, workers int, logger *slog.Logger) ([]model.FeatureRecord, error) {
	paths, err := walkAudioFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no audio files found under %s", dir)
	}

	c, err := cache.Open(cacheDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	w, err := config.LoadWeights(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	extractor := extract.New(logger, mood.NewRuleClassifier())
	extractor.SetEnergyWeights(w.ExtractorWeights())
	wp := pool.New(workers, len(paths))

	records := make([]model.FeatureRecord, len(paths))
	errs := make([]error, len(paths))

	for i, p := range paths {
		i, p := i, p
		wp.Submit(func() {
			rec, err := extractOne(c, extractor, p)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", p, err)
				return
			}
			records[i] = rec
		})
	}
	wp.Wait()
	wp.Close()

	var out []model.FeatureRecord
	for i, rec := range records {
		if errs[i] != nil {
			logger.Warn("extraction failed, skipping", "error", errs[i])
			continue
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("every file under %s failed extraction", dir)
	}
	return out, nil
}

func extractOne(c *cache.Cache, extractor *extract.Extractor, path string) (model.FeatureRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.FeatureRecord{}, err
	}
	trackID := model.Normalize(path)

	return c.GetOrExtract(trackID, info.Size(), info.ModTime().Unix(), decode.DefaultProfile.ID, func() (model.FeatureRecord, error) {
		return extractor.ExtractFile(path, 0)
	})
}
