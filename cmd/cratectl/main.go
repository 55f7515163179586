// Command cratectl is the CLI for the playlist engineering pipeline:
// analyze a library, browse harmonic suggestions, solve an energy-curve
// playlist, validate a set, and export it to a DJ-software format.
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 1
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var err error
	switch cmd {
	case "analyze":
		err = runAnalyze(args, logger)
	case "cache":
		err = runCache(args, logger)
	case "suggest":
		err = runSuggest(args, logger)
	case "solve":
		err = runSolve(args, logger)
	case "validate":
		err = runValidate(args, logger)
	case "export":
		err = runExport(args, logger)
	case "help", "-h", "--help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "cratectl: unknown command %q\n\n", cmd)
		usage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "cratectl %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: cratectl <command> [flags]

Commands:
  analyze   extract audio features for a library directory, caching results
  cache     inspect or maintain the feature cache (stats, clear, evict)
  suggest   find harmonically compatible tracks for a given track
  solve     beam-search a playlist matching an energy curve
  validate  score a playlist and report issues
  export    write a playlist to a DJ-software or plain format

Run "cratectl <command> -h" for command-specific flags.`)
}
