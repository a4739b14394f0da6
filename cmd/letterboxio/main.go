// Package main provides the letterboxio command line tool.
// It wires the catalog core against the live site and runs one operation:
// reading the watchlist, resolving ids, or sending ratings and watchlist changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Louieza23/Letterboxio/pkg/addon"
	"github.com/Louieza23/Letterboxio/pkg/config"
	"github.com/Louieza23/Letterboxio/pkg/logging"
)

const (
	version = "0.1.0" // Version of the letterboxio tool

	// shutdownTimeout bounds how long queued actions may take to drain on exit
	shutdownTimeout = 2 * time.Minute
)

// Options holds the command line options
type Options struct {
	ConfigPath  string
	LogLevel    string
	Async       bool
	ShowVersion bool
	Command     string
	Args        []string
}

func main() {
	opts := parseFlags()

	if opts.ShowVersion {
		fmt.Printf("letterboxio v%s\n", version)
		return
	}

	if opts.Command == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		cancel()
		log.Fatalf("%s", errorStyle.Render(fmt.Sprintf("Error: %v", err)))
	}
	cancel()
}

// parseFlags parses command line flags and the subcommand
func parseFlags() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: ~/.letterboxio/config.yaml)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.BoolVar(&opts.Async, "async", false, "Queue rate/watchlist actions like the addon does, then drain the queue")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "letterboxio - Letterboxd watchlist catalog core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: letterboxio [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  listing                      Print the configured user's watchlist\n")
		fmt.Fprintf(os.Stderr, "  search <query>               Fuzzy-search the watchlist titles\n")
		fmt.Fprintf(os.Stderr, "  meta <slug>                  Print film metadata\n")
		fmt.Fprintf(os.Stderr, "  resolve <external-id>        Map an IMDb (tt…) or TMDB (tmdb:N) id to a slug\n")
		fmt.Fprintf(os.Stderr, "  rate <external-id> <stars>   Rate a film, 0.5 to 5 in half stars\n")
		fmt.Fprintf(os.Stderr, "  watchlist <external-id> add|remove\n")
		fmt.Fprintf(os.Stderr, "  config                       Print the effective configuration\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  LETTERBOXIO_USERNAME   Account username (enables rate/watchlist)\n")
		fmt.Fprintf(os.Stderr, "  LETTERBOXIO_PASSWORD   Account password\n")
		fmt.Fprintf(os.Stderr, "  LETTERBOXIO_USER       Watchlist owner (default: username)\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  letterboxio listing\n")
		fmt.Fprintf(os.Stderr, "  letterboxio resolve tt0816692\n")
		fmt.Fprintf(os.Stderr, "  letterboxio rate tt0816692 4.5\n")
		fmt.Fprintf(os.Stderr, "  letterboxio -async watchlist tt0816692 add\n")
	}

	flag.Parse()
	if flag.NArg() > 0 {
		opts.Command = flag.Arg(0)
		opts.Args = flag.Args()[1:]
	}
	return opts
}

// run loads configuration, wires the service and dispatches the command
func run(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	if opts.Command == "config" {
		return printConfig(cfg)
	}

	logging.SetDirectory(cfg.Logging.Dir)
	logger, logErr := logging.NewLogger("letterboxio")
	if logErr != nil {
		fmt.Fprintln(os.Stderr, mutedStyle.Render(fmt.Sprintf("file logging unavailable: %v", logErr)))
	}
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	defer logger.Close()
	logger.Infof("letterboxio v%s starting command %q", version, opts.Command)

	svc, err := addon.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		// ctx may already be cancelled by a signal; draining gets its own budget.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := svc.Close(shutdownCtx); closeErr != nil {
			logger.Errorf("shutdown: %v", closeErr)
		}
		logger.Infof("stats: %s", svc.Stats())
	}()

	cmd, ok := commands[opts.Command]
	if !ok {
		return fmt.Errorf("unknown command %q (run with -h for usage)", opts.Command)
	}
	if err := cmd.checkArgs(opts.Args); err != nil {
		return err
	}
	return cmd.run(ctx, svc, opts)
}
