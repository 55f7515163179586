// Package scanner walks a library directory for audio files and
// enqueues one extraction job per file into internal/jobs, reporting
// progress (percent complete, ETA) as it goes.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djcrate/engine/internal/jobs"
)

// SupportedFormats lists the audio formats the decoder can handle.
var SupportedFormats = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".aiff": true,
	".aif":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
}

// Scanner recursively scans directories for audio files and enqueues
// them into a job ledger.
type Scanner struct {
	ledger *jobs.DB
	logger *slog.Logger
}

// ScanProgress reports scanning progress as files are discovered and
// enqueued.
type ScanProgress struct {
	Path           string
	ContentHash    string
	Status         string // queued, skipped, error
	Error          string
	Processed      int64
	Total          int64
	Percent        float32
	ElapsedMs      int64
	ETAMs          int64
	NewJobsFound   int64
	AlreadyQueued  int64
	BytesProcessed int64
	BytesTotal     int64
}

// NewScanner creates a scanner that enqueues jobs into ledger.
func NewScanner(ledger *jobs.DB, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{ledger: ledger, logger: logger}
}

// Scan recursively scans roots for audio files, enqueuing one job per
// file. A rerun over a directory that partially completed only
// enqueues the files not already in the ledger.
func (s *Scanner) Scan(ctx context.Context, roots []string, progress chan<- ScanProgress) error {
	defer close(progress)

	startTime := time.Now()

	total, bytesTotal := int64(0), int64(0)
	for _, root := range roots {
		count, bytes, err := s.countFilesWithBytes(root)
		if err != nil {
			s.logger.Warn("failed to count files in root", "root", root, "error", err)
			continue
		}
		total += count
		bytesTotal += bytes
	}

	var processed, newJobs, alreadyQueued, bytesProcessed int64

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if d.IsDir() {
				return nil
			}
			if !SupportedFormats[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			info, _ := d.Info()
			var fileSize int64
			if info != nil {
				fileSize = info.Size()
			}

			hash, hashErr := ComputeHash(path)
			if hashErr != nil {
				hash = ""
			}

			status, errMsg := "queued", ""
			inserted, err := s.ledger.EnqueueBatch([]string{path})
			switch {
			case err != nil:
				status, errMsg = "error", err.Error()
			case inserted > 0:
				newJobs++
			default:
				status = "skipped"
				alreadyQueued++
			}

			processed++
			bytesProcessed += fileSize

			elapsedMs := time.Since(startTime).Milliseconds()
			var etaMs int64
			var percent float32
			if total > 0 {
				percent = float32(processed) / float32(total) * 100
				if processed > 0 {
					avgTimePerFile := float64(elapsedMs) / float64(processed)
					etaMs = int64(avgTimePerFile * float64(total-processed))
				}
			}

			select {
			case progress <- ScanProgress{
				Path:           path,
				ContentHash:    hash,
				Status:         status,
				Error:          errMsg,
				Processed:      processed,
				Total:          total,
				Percent:        percent,
				ElapsedMs:      elapsedMs,
				ETAMs:          etaMs,
				NewJobsFound:   newJobs,
				AlreadyQueued:  alreadyQueued,
				BytesProcessed: bytesProcessed,
				BytesTotal:     bytesTotal,
			}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil && err != context.Canceled {
			s.logger.Error("scan error", "root", root, "error", err)
		}
	}
	return nil
}

func (s *Scanner) countFilesWithBytes(root string) (int64, int64, error) {
	var count, totalBytes int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if SupportedFormats[strings.ToLower(filepath.Ext(path))] {
			count++
			if info, err := d.Info(); err == nil {
				totalBytes += info.Size()
			}
		}
		return nil
	})
	return count, totalBytes, err
}

// ComputeHash returns a fast content identity hash (first 64KB) for a
// file, used to detect a moved-but-unchanged file independent of path.
func ComputeHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, file, 64*1024); err != nil && err != io.EOF {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
