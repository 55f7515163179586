// Package config holds runtime configuration: flag-parsed process
// settings plus a TOML document of tunable scoring weights that can be
// hot-reloaded without restarting a long-running batch job.
package config

import (
	"flag"
	"os"
)

// Config holds the process-level settings parsed from command-line
// flags.
type Config struct {
	DataDir     string
	CacheDir    string
	LogLevel    string
	Workers     int
	WeightsPath string
}

// Parse reads process flags into a Config. Call once from main.
func Parse() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DataDir, "data-dir", defaultDataDir(), "directory holding the analysis cache and job ledger")
	flag.StringVar(&cfg.CacheDir, "cache-dir", "", "directory for the feature cache (default: <data-dir>/cache)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.IntVar(&cfg.Workers, "workers", 0, "extraction worker count (default: number of CPUs)")
	flag.StringVar(&cfg.WeightsPath, "weights", defaultWeightsPath(), "path to the scoring weights TOML file")

	flag.Parse()

	if cfg.CacheDir == "" {
		cfg.CacheDir = cfg.DataDir + "/cache"
	}
	return cfg
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

func defaultWeightsPath() string {
	return defaultDataDir() + "/weights.toml"
}
