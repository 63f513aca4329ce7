// Package main is the entry point for the asciicanvas viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/asciicanvas/internal/app"
	"github.com/dshills/asciicanvas/internal/config"
	"github.com/dshills/asciicanvas/internal/renderer/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type cliOptions struct {
	configPath string
	logLevel   string
	logFile    string
	watch      bool
	snapshot   bool
	panStep    int
	docPath    string
}

func main() {
	os.Exit(run())
}

func run() int {
	cli := parseFlags()

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cli.logLevel != "" {
		cfg.Logging.Level = cli.logLevel
	}
	if cli.logFile != "" {
		cfg.Logging.File = cli.logFile
	}

	logger, closer, err := app.OpenLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closer.Close()

	opts := app.Options{
		Config:  cfg,
		DocPath: cli.docPath,
		Watch:   cli.watch,
		Logger:  logger,
		PanStep: cli.panStep,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cli.snapshot {
		application, err := app.New(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
			return 1
		}
		if err := application.Snapshot(ctx, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	// A terminal viewer must not also log to the screen it draws on.
	if cfg.Logging.File == "" {
		opts.Logger = app.NullLogger
	}

	term, err := backend.NewTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	opts.Backend = term

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() cliOptions {
	var cli cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&cli.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&cli.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&cli.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&cli.logFile, "log-file", "", "Write logs to this file")
	flag.BoolVar(&cli.watch, "watch", false, "Reload the document when it changes")
	flag.BoolVar(&cli.watch, "w", false, "Reload the document when it changes (shorthand)")
	flag.BoolVar(&cli.snapshot, "snapshot", false, "Print the rendered document to stdout and exit")
	flag.BoolVar(&cli.snapshot, "s", false, "Print the rendered document to stdout and exit (shorthand)")
	flag.IntVar(&cli.panStep, "pan", 1, "Cells moved per arrow key")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "asciicanvas - layered ASCII scene viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: asciicanvas [options] document.yaml\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  arrows   pan the view\n")
		fmt.Fprintf(os.Stderr, "  home     reset the view\n")
		fmt.Fprintf(os.Stderr, "  r        reload the document\n")
		fmt.Fprintf(os.Stderr, "  ctrl-l   redraw the screen\n")
		fmt.Fprintf(os.Stderr, "  q, esc   quit\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  asciicanvas scene.yaml            View a document\n")
		fmt.Fprintf(os.Stderr, "  asciicanvas -w scene.yaml         View and reload on save\n")
		fmt.Fprintf(os.Stderr, "  asciicanvas -s scene.json > out   Render to a file\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("asciicanvas %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch cli.logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", cli.logLevel)
		os.Exit(1)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	cli.docPath = flag.Arg(0)

	return cli
}
