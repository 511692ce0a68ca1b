// Package dispatcher implements the Worker Pool / Dispatcher (C14): it runs
// a continuous queue of DocumentTasks across a fixed number of worker
// subprocesses, resubmitting the next queued task to a slot as soon as it
// frees, and degrades gracefully when a worker subprocess cannot be started
// or a task runs so long it is presumed stuck (spec §4.2).
//
// Each worker is the same compiled binary, reinvoked as `<binary> worker`
// with a DocumentTask JSON on stdin and a WorkerResult JSON on stdout
// (SPEC_FULL.md §12.8) — this is the Go analogue of the Python original's
// ProcessPoolExecutor: os/exec subprocess isolation stands in for a forked
// worker process, and cmd.Wait() stands in for a future's completion.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/repository"
)

// defaultPhantomThreshold matches the Python original's force_cleanup_phantom_workers(max_hours=4).
const defaultPhantomThreshold = 4 * time.Hour

// pollInterval mirrors processor.py's wait(..., timeout=30 if time_limit_reached else 60).
const (
	pollIntervalNormal    = 60 * time.Second
	pollIntervalTimeLimit = 30 * time.Second
)

// Options configures a Run call.
type Options struct {
	// Workers is the number of concurrent worker subprocesses.
	Workers int
	// TimeLimit stops submitting new tasks once elapsed, zero means no limit.
	TimeLimit time.Duration
	// PhantomThreshold is how long a task may run before its worker is
	// declared phantom and killed. Zero means defaultPhantomThreshold.
	PhantomThreshold time.Duration
	// BinaryPath is the executable to reinvoke as a worker, empty means the
	// currently running binary (os.Args[0]).
	BinaryPath string
	// WorkerArgs are extra arguments appended after "worker", e.g. flags
	// the worker subcommand needs to reach the same database and buckets.
	WorkerArgs []string
}

// Result summarizes one Run call, mirroring process_mixed_project_files's
// returned dict.
type Result struct {
	DocumentsProcessed int
	TimeLimitReached   bool
	ProcessPoolBroken  bool
}

// ProgressReporter receives start/finish notifications for each document a
// worker picks up. internal/progress.Tracker implements this.
type ProgressReporter interface {
	StartDocument(workerSlot int, task model.DocumentTask)
	FinishDocument(workerSlot int, status model.ProcessingStatus)
}

// Dispatcher runs DocumentTasks through worker subprocesses.
type Dispatcher struct {
	logs     *repository.ProcessingLogRepo
	docs     *repository.DocumentRepo
	progress ProgressReporter
}

// New creates a Dispatcher. progress may be nil.
func New(logs *repository.ProcessingLogRepo, docs *repository.DocumentRepo, progress ProgressReporter) *Dispatcher {
	return &Dispatcher{logs: logs, docs: docs, progress: progress}
}

// activeWorker tracks one in-flight subprocess.
type activeWorker struct {
	task      model.DocumentTask
	startedAt time.Time
	cancel    context.CancelFunc
}

// outcome is what a worker goroutine sends back when its subprocess exits.
type outcome struct {
	slot   int
	task   model.DocumentTask
	result model.WorkerResult
	err    error
	broken bool
}

// brokenPoolError marks a failure to even start a worker subprocess — the Go
// analogue of concurrent.futures.process.BrokenProcessPool.
type brokenPoolError struct{ cause error }

func (e *brokenPoolError) Error() string { return fmt.Sprintf("worker subprocess failed to start: %v", e.cause) }
func (e *brokenPoolError) Unwrap() error { return e.cause }

// Run drains tasks across Options.Workers concurrent worker subprocesses,
// resubmitting onto a freed slot immediately, until the queue is empty, the
// time limit is reached, or the pool degrades to a single remaining worker.
func (d *Dispatcher) Run(ctx context.Context, tasks []model.DocumentTask, opts Options) (Result, error) {
	if len(tasks) == 0 {
		return Result{}, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	phantomThreshold := opts.PhantomThreshold
	if phantomThreshold <= 0 {
		phantomThreshold = defaultPhantomThreshold
	}

	start := time.Now()
	outcomeCh := make(chan outcome)
	active := make(map[int]*activeWorker, workers)
	nextIndex := 0
	remainingWorkers := workers
	var res Result

	launch := func(slot int) {
		task := tasks[nextIndex]
		nextIndex++
		taskCtx, cancel := context.WithCancel(ctx)
		active[slot] = &activeWorker{task: task, startedAt: time.Now(), cancel: cancel}
		if d.progress != nil {
			d.progress.StartDocument(slot, task)
		}
		go func() {
			result, err := d.runWorker(taskCtx, opts, task)
			outcomeCh <- outcome{slot: slot, task: task, result: result, err: err, broken: isBrokenPool(err)}
		}()
	}

	for slot := 0; slot < workers && nextIndex < len(tasks); slot++ {
		launch(slot)
	}

	for len(active) > 0 {
		timeout := pollIntervalNormal
		if res.TimeLimitReached {
			timeout = pollIntervalTimeLimit
		}

		select {
		case o := <-outcomeCh:
			delete(active, o.slot)
			res.DocumentsProcessed++

			status := d.recordOutcome(ctx, o.task, o.result, o.err)
			if d.progress != nil {
				d.progress.FinishDocument(o.slot, status)
			}

			if o.broken {
				remainingWorkers--
				slog.Info("dispatcher: worker subprocess broken, degrading pool",
					"remaining_workers", remainingWorkers)
				if remainingWorkers <= 1 {
					res.ProcessPoolBroken = true
				}
			}

			if !res.TimeLimitReached && opts.TimeLimit > 0 && time.Since(start) >= opts.TimeLimit {
				res.TimeLimitReached = true
				slog.Info("dispatcher: time limit reached, no further tasks will be submitted")
			}

			if !res.TimeLimitReached && !res.ProcessPoolBroken && nextIndex < len(tasks) {
				launch(o.slot)
			}

		case <-time.After(timeout):
			d.cleanupPhantoms(active, phantomThreshold)
		}
	}

	return res, nil
}

// cleanupPhantoms cancels any worker that has been running longer than
// threshold. The cancellation kills the subprocess; the goroutine still
// reports its outcome normally once the kill completes, so bookkeeping stays
// in one place.
func (d *Dispatcher) cleanupPhantoms(active map[int]*activeWorker, threshold time.Duration) {
	now := time.Now()
	for slot, aw := range active {
		if now.Sub(aw.startedAt) < threshold {
			continue
		}
		slog.Info("dispatcher: worker declared phantom, killing",
			"slot", slot, "project_id", aw.task.ProjectID, "document_id", aw.task.CatalogDoc.ID,
			"running_for", now.Sub(aw.startedAt).String())
		aw.cancel()
	}
}

// recordOutcome persists a failure log when the worker never got the chance
// to write one itself — a crash or a killed phantom. A clean exit has
// already had its ProcessingLog row written by the worker, inside the
// Document Processor sequence (spec §4.4 step 10).
func (d *Dispatcher) recordOutcome(ctx context.Context, task model.DocumentTask, result model.WorkerResult, err error) model.ProcessingStatus {
	if err == nil {
		if result.Status != "" {
			return result.Status
		}
		return model.StatusSuccess
	}

	docID := task.CatalogDoc.ID
	existing, logErr := d.logs.Latest(ctx, task.ProjectID, docID)
	if logErr == nil && existing != nil {
		// The worker already recorded its own outcome before crashing on
		// cleanup/exit; don't double-log.
		return existing.Status
	}

	metrics, _ := json.Marshal(model.ProcessingMetrics{Error: err.Error()})
	failLog := model.ProcessingLog{
		ProjectID:   task.ProjectID,
		DocumentID:  docID,
		Status:      model.StatusFailure,
		ProcessedAt: time.Now(),
		Metrics:     metrics,
	}
	if persistErr := d.docs.PersistFailure(ctx, failLog); persistErr != nil {
		slog.Error("dispatcher: failed to persist failure log for crashed worker",
			"project_id", task.ProjectID, "document_id", docID, "error", persistErr)
	}
	return model.StatusFailure
}

// runWorker reinvokes the binary as a worker subprocess, writes task as JSON
// to its stdin, and decodes a WorkerResult from its stdout.
func (d *Dispatcher) runWorker(ctx context.Context, opts Options, task model.DocumentTask) (model.WorkerResult, error) {
	binary := opts.BinaryPath
	if binary == "" {
		var err error
		binary, err = os.Executable()
		if err != nil {
			binary = os.Args[0]
		}
	}
	args := append([]string{"worker"}, opts.WorkerArgs...)
	cmd := exec.CommandContext(ctx, binary, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return model.WorkerResult{}, &brokenPoolError{err}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return model.WorkerResult{}, &brokenPoolError{err}
	}

	payload, err := json.Marshal(task)
	if err != nil {
		_ = cmd.Process.Kill()
		return model.WorkerResult{}, fmt.Errorf("dispatcher: marshal task: %w", err)
	}
	if _, err := stdin.Write(payload); err != nil {
		_ = cmd.Process.Kill()
		return model.WorkerResult{}, fmt.Errorf("dispatcher: write task to worker stdin: %w", err)
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return model.WorkerResult{}, fmt.Errorf("dispatcher: worker exited: %w (stderr: %s)", err, stderr.String())
	}

	var result model.WorkerResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return model.WorkerResult{}, fmt.Errorf("dispatcher: decode worker result: %w", err)
	}
	return result, nil
}

func isBrokenPool(err error) bool {
	var bpe *brokenPoolError
	return errors.As(err, &bpe)
}
