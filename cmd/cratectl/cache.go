package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/djcrate/engine/internal/cache"
)

func runCache(args []string, logger *slog.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cratectl cache <stats|clear|evict> [flags]")
	}

	action := args[0]
	fs := flag.NewFlagSet("cache "+action, flag.ExitOnError)
	cacheDir := fs.String("cache-dir", defaultCacheDir(), "feature cache directory")
	maxAgeDays := fs.Int("max-age-days", 90, "evict: drop entries not accessed within this many days")
	maxSizeBytes := fs.Int64("max-size-bytes", 0, "evict: drop oldest entries until under this total size (0 = no limit)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	c, err := cache.Open(*cacheDir, logger)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	switch action {
	case "stats":
		stats := c.Stats()
		fmt.Fprintf(os.Stdout, "entries: %d\ntotal size: %d bytes\n", stats.TotalFiles, stats.TotalSizeBytes)
	case "clear":
		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "cache cleared")
	case "evict":
		n, err := c.Evict(*maxAgeDays, *maxSizeBytes)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "evicted %d entries\n", n)
	default:
		return fmt.Errorf("unknown cache action %q (want stats, clear, or evict)", action)
	}
	return nil
}
