package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/djcrate/engine/internal/cache"
	"github.com/djcrate/engine/internal/config"
	"github.com/djcrate/engine/internal/extract"
	"github.com/djcrate/engine/internal/extract/mood"
	"github.com/djcrate/engine/internal/jobs"
	"github.com/djcrate/engine/internal/pool"
	"github.com/djcrate/engine/internal/scanner"
)

// runAnalyze enqueues every audio file under -dir into a durable job
// ledger, then drains the ledger across a worker pool, extracting and
// caching features for each claimed job.
func runAnalyze(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of audio files to analyze (required)")
	dataDir := fs.String("data-dir", defaultDataDir(), "directory holding the job ledger")
	cacheDir := fs.String("cache-dir", defaultCacheDir(), "feature cache directory")
	weightsPath := fs.String("weights", defaultWeightsPath(), "scoring weights TOML file")
	workers := fs.Int("workers", 0, "extraction worker count (default: number of CPUs)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		fs.Usage()
		return fmt.Errorf("-dir is required")
	}

	ledger, err := jobs.Open(*dataDir, logger)
	if err != nil {
		return fmt.Errorf("open job ledger: %w", err)
	}
	defer ledger.Close()

	s := scanner.NewScanner(ledger, logger)
	progress := make(chan scanner.ScanProgress, 64)
	scanErrCh := make(chan error, 1)
	go func() { scanErrCh <- s.Scan(context.Background(), []string{*dir}, progress) }()

	var last scanner.ScanProgress
	for p := range progress {
		last = p
	}
	if err := <-scanErrCh; err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	fmt.Fprintf(os.Stdout, "scanned %d files: %d new, %d already queued\n", last.Processed, last.NewJobsFound, last.AlreadyQueued)

	completed, failed, err := drainJobs(ledger, *cacheDir, *weightsPath, *workers, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "analyzed %d tracks into %s (%d failed)\n", completed, *cacheDir, failed)
	return nil
}

// drainJobs claims every pending job off the ledger and extracts
// features for it across a worker pool, recording success or failure
// back into the ledger.
func drainJobs(ledger *jobs.DB, cacheDir, weightsPath string, workers int, logger *slog.Logger) (completed, failed int, err error) {
	c, err := cache.Open(cacheDir, logger)
	if err != nil {
		return 0, 0, fmt.Errorf("open cache: %w", err)
	}
	w, err := config.LoadWeights(weightsPath)
	if err != nil {
		return 0, 0, fmt.Errorf("load weights: %w", err)
	}
	extractor := extract.New(logger, mood.NewRuleClassifier())
	extractor.SetEnergyWeights(w.ExtractorWeights())
	wp := pool.New(workers, 0)
	defer wp.Close()

	var mu sync.Mutex
	for {
		job, claimErr := ledger.ClaimJob()
		if claimErr != nil {
			return completed, failed, fmt.Errorf("claim job: %w", claimErr)
		}
		if job == nil {
			break
		}
		job := job
		wp.Submit(func() {
			rec, extractErr := extractOne(c, extractor, job.TrackPath)
			mu.Lock()
			defer mu.Unlock()
			if extractErr != nil {
				failed++
				if ferr := ledger.FailJob(job.ID, extractErr.Error()); ferr != nil {
					logger.Warn("failed to record job failure", "job", job.ID, "error", ferr)
				}
				return
			}
			completed++
			if cerr := ledger.CompleteJob(job.ID, rec); cerr != nil {
				logger.Warn("failed to record job completion", "job", job.ID, "error", cerr)
			}
		})
	}
	wp.Wait()
	return completed, failed, nil
}

func defaultDataDir() string {
	if dir := os.Getenv("CRATECTL_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cratectl"
	}
	return home + "/.cratectl"
}

func defaultCacheDir() string {
	if dir := os.Getenv("CRATECTL_DATA_DIR"); dir != "" {
		return dir + "/cache"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cratectl/cache"
	}
	return home + "/.cratectl/cache"
}

func defaultWeightsPath() string {
	return defaultDataDir() + "/weights.toml"
}
