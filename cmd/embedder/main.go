// Command embedder is the CLI entrypoint for the EPIC.search ingestion
// pipeline: it builds a DocumentTask queue from the EAO catalog and drains
// it across worker subprocesses, reinvoking itself as `embedder worker` for
// each one (SPEC_FULL.md §12.6–§12.8).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcgov/epic-search-embedder/internal/config"
)

const version = "1.0.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "worker" {
		os.Exit(runWorker(os.Args[2:]))
	}

	if err := runController(os.Args[1:]); err != nil {
		slog.Error("embedder: fatal", "error", err)
		os.Exit(1)
	}
}

// projectIDList collects repeated --project-id flags, mirroring the
// original's `--project_id id [id ...]` nargs="+" behavior.
type projectIDList []string

func (p *projectIDList) String() string { return fmt.Sprint([]string(*p)) }
func (p *projectIDList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

type cliOptions struct {
	projectIDs      projectIDList
	retryFailed     bool
	retrySkipped    bool
	repair          bool
	reset           bool
	timedMinutes    int
	skipHNSWIndexes bool
}

func parseFlags(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("embedder", flag.ContinueOnError)
	fs.Var(&opts.projectIDs, "project-id", "project ID to process, may be repeated (default: every catalog project)")
	fs.BoolVar(&opts.retryFailed, "retry-failed", false, "re-queue documents whose latest log is failure")
	fs.BoolVar(&opts.retrySkipped, "retry-skipped", false, "re-queue documents whose latest log is skipped")
	fs.BoolVar(&opts.repair, "repair", false, "analyze and clean up inconsistent documents, then re-queue them")
	fs.BoolVar(&opts.reset, "reset", false, "wipe and fully reprocess a single project (requires exactly one --project-id)")
	fs.IntVar(&opts.timedMinutes, "timed", 0, "stop submitting new tasks after this many minutes (0 = no limit)")
	fs.BoolVar(&opts.skipHNSWIndexes, "skip-hnsw-indexes", false, "skip HNSW index creation during startup schema bootstrap")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, validateMode(opts)
}

// validateMode enforces the mutual-exclusion table of spec §4.1/§6.5.
func validateMode(opts cliOptions) error {
	modes := 0
	for _, set := range []bool{opts.retryFailed || opts.retrySkipped, opts.repair, opts.reset} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("--retry-failed/--retry-skipped, --repair and --reset are mutually exclusive")
	}
	if opts.reset && len(opts.projectIDs) != 1 {
		return fmt.Errorf("--reset requires exactly one --project-id")
	}
	return nil
}

func runController(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Close()

	if err := app.bootstrapSchema(ctx, opts.skipHNSWIndexes); err != nil {
		return fmt.Errorf("schema bootstrap: %w", err)
	}

	stopAdmin := app.maybeStartAdmin(cfg)
	defer stopAdmin(context.Background())

	var timeLimit time.Duration
	if opts.timedMinutes > 0 {
		timeLimit = time.Duration(opts.timedMinutes) * time.Minute
	}

	return app.run(ctx, opts, timeLimit)
}
