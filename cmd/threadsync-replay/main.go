// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// threadsync-replay drives a sync engine through a scripted scenario
// against an in-memory backend and prints the engine's final state as
// JSON.
//
// A scenario seeds the backend with threads and messages, then lists
// steps: list_threads, list_messages, send, create_thread, mark_read,
// archive, save_draft, clear_draft, fail (inject a backend error),
// publish (push a raw event through the event bridge), and advance
// (move the fake clock). The clock is fake, so output is reproducible.
//
// Configuration (viewer, draft persistence, logging, bridge backoff)
// comes from the file named by --config or THREADSYNC_CONFIG; without
// either, drafts are kept in memory. A .env file in the working
// directory is loaded into the environment first.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/threadsync/drafts"
	"github.com/bureau-foundation/threadsync/engine"
	"github.com/bureau-foundation/threadsync/lib/clock"
	"github.com/bureau-foundation/threadsync/lib/config"
	"github.com/bureau-foundation/threadsync/lib/version"
	"github.com/bureau-foundation/threadsync/schema"
	"github.com/bureau-foundation/threadsync/service/memservice"
)

const binaryName = "threadsync-replay"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	indent := term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, indent); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// options are the parsed command line.
type options struct {
	configPath   string
	envFile      string
	envFileGiven bool
	indent       bool
	metrics      bool
	scenarioPath string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, terminal bool) error {
	var opts options
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to threadsync.yaml (default: $"+config.EnvVariable+")")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.BoolVar(&opts.indent, "indent", terminal, "indent the JSON output (default: when stdout is a terminal)")
	flagSet.BoolVar(&opts.metrics, "metrics", false, "log engine metrics to stderr when the replay finishes")
	flagSet.BoolP("help", "h", false, "show help")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print(stdout, binaryName)
		return nil
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if flagSet.NArg() != 1 {
		printHelp(stderr, flagSet)
		return fmt.Errorf("expected exactly one scenario file, got %d arguments", flagSet.NArg())
	}
	opts.scenarioPath = flagSet.Arg(0)
	opts.envFileGiven = flagSet.Changed("env-file")

	if err := loadEnvFile(opts.envFile, opts.envFileGiven); err != nil {
		return err
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}

	scenario, err := readScenario(opts.scenarioPath)
	if err != nil {
		return err
	}
	return replay(ctx, cfg, scenario, logger, stdout, opts)
}

// loadEnvFile loads a dotenv file. A missing default file is not an
// error; a missing file named on the command line is.
func loadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!required && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// loadConfig reads the named file, else THREADSYNC_CONFIG, else the
// defaults with in-memory drafts.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv(config.EnvVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.Drafts.Backend = config.BackendMemory
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}

func replay(ctx context.Context, cfg *config.Config, scenario *scenario, logger *slog.Logger, stdout io.Writer, opts options) error {
	fake := clock.Fake(scenario.start())
	backend := memservice.New(memservice.Config{Clock: fake, PreviewSize: 1, Synchronous: true})
	if err := seed(backend, scenario); err != nil {
		return err
	}

	draftStore, err := drafts.Open(cfg.Drafts.Backend, cfg.Drafts.Path, logger)
	if err != nil {
		return fmt.Errorf("opening drafts: %w", err)
	}
	defer draftStore.Close()

	maxBackoff, err := cfg.MaxBackoff()
	if err != nil {
		return err
	}

	viewer := schema.Viewer{ID: schema.UserID(cfg.Viewer.ID), Role: cfg.ViewerRole()}
	if scenario.Viewer.ID != "" {
		viewer.ID = schema.UserID(scenario.Viewer.ID)
	}
	if scenario.Viewer.Role != "" {
		viewer.Role = schema.Role(scenario.Viewer.Role)
	}

	registry := prometheus.NewRegistry()
	syncEngine, err := engine.New(ctx, engine.Config{
		Service:    backend,
		Drafts:     draftStore,
		Viewer:     viewer,
		Clock:      fake,
		Logger:     logger,
		Registerer: registry,
		MaxBackoff: maxBackoff,
	})
	if err != nil {
		return err
	}
	defer syncEngine.Close()

	eventsCtx, cancelEvents := context.WithCancel(ctx)
	defer cancelEvents()
	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- syncEngine.RunEvents(eventsCtx) }()

	replayer := &replayer{engine: syncEngine, backend: backend, clock: fake, logger: logger}
	if err := replayer.waitSubscribed(ctx); err != nil {
		return err
	}
	logger.Info("replaying scenario", "path", opts.scenarioPath, "steps", len(scenario.Steps), "viewer_role", viewer.Role)
	if err := replayer.run(ctx, scenario.Steps); err != nil {
		return err
	}

	cancelEvents()
	if err := <-bridgeDone; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("event bridge: %w", err)
	}
	if opts.metrics {
		if err := logMetrics(logger, registry); err != nil {
			return err
		}
	}
	return writeReport(stdout, buildReport(viewer, syncEngine.State()), opts.indent)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `threadsync-replay drives a sync engine through a scripted scenario.

Usage:
  threadsync-replay [flags] <scenario.yaml|scenario.jsonc>

Examples:
  # Replay with in-memory drafts
  threadsync-replay testdata/send.yaml

  # Use a config file and persist drafts where it says
  threadsync-replay --config threadsync.yaml scenario.jsonc

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
