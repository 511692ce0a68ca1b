package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bcgov/epic-search-embedder/internal/catalog"
	"github.com/bcgov/epic-search-embedder/internal/config"
	"github.com/bcgov/epic-search-embedder/internal/dispatcher"
	"github.com/bcgov/epic-search-embedder/internal/handler"
	"github.com/bcgov/epic-search-embedder/internal/middleware"
	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/progress"
	"github.com/bcgov/epic-search-embedder/internal/queue"
	"github.com/bcgov/epic-search-embedder/internal/repair"
	"github.com/bcgov/epic-search-embedder/internal/repository"
	"github.com/bcgov/epic-search-embedder/internal/router"
	redisclient "github.com/redis/go-redis/v9"
)

// app holds the controller process's long-lived collaborators. Unlike a
// worker, the controller never touches GCS/Document AI/Vertex AI — it only
// discovers and dispatches work, so it needs a much smaller dependency set
// than internal/pipeline.Dependencies.
type app struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	repairPool *pgxpool.Pool
	catalog    *catalog.Client
	queue      *queue.Builder
	repair     *repair.Service
	logs       *repository.ProcessingLogRepo
	docs       *repository.DocumentRepo
	tracker    *progress.Tracker
	metrics    *prometheus.Registry
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	docs := repository.NewDocumentRepo(pool)
	chunks := repository.NewChunkRepo(pool)
	logs := repository.NewProcessingLogRepo(pool)

	repairPool, err := repository.NewRepairPool(ctx, cfg.DatabaseURL, repository.RepairPoolConfig{
		MaxConns:           int32(cfg.RepairPoolMaxConns),
		StatementTimeoutMs: cfg.RepairStatementTimeoutMs,
		LockTimeoutMs:      cfg.RepairLockTimeoutMs,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open repair pool: %w", err)
	}
	repairDocs := repository.NewDocumentRepo(repairPool)

	repairSvc := repair.New(logs, repairDocs, chunks)
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogPageSize)
	queueBuilder := queue.New(catalogClient, logs, repairSvc, cfg.CatalogPageSize)

	reg := prometheus.NewRegistry()
	metrics := progress.NewMetrics(reg)

	var trackerOpts []progress.Option
	trackerOpts = append(trackerOpts, progress.WithMetrics(metrics))
	if cfg.RedisURL != "" {
		redisOpt, err := redisclient.ParseURL(cfg.RedisURL)
		if err != nil {
			repairPool.Close()
			pool.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		trackerOpts = append(trackerOpts, progress.WithRedisMirror(redisclient.NewClient(redisOpt), "embedder:progress"))
	}
	tracker := progress.New(trackerOpts...)

	return &app{
		cfg:        cfg,
		pool:       pool,
		repairPool: repairPool,
		catalog:    catalogClient,
		queue:      queueBuilder,
		repair:     repairSvc,
		logs:       logs,
		docs:       docs,
		tracker:    tracker,
		metrics:    reg,
	}, nil
}

func (a *app) Close() {
	a.repairPool.Close()
	a.pool.Close()
}

// resolveProjects returns the set of projects a run should cover: the
// catalog projects named by --project-id, or every catalog project when
// none were given (spec §4.1).
func (a *app) resolveProjects(ctx context.Context, ids []string) ([]model.Project, error) {
	if len(ids) > 0 {
		projects := make([]model.Project, 0, len(ids))
		for _, id := range ids {
			p, err := a.catalog.GetProjectByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("resolve project %s: %w", id, err)
			}
			if p == nil {
				return nil, fmt.Errorf("resolve project %s: not found in catalog", id)
			}
			projects = append(projects, *p)
		}
		return projects, nil
	}

	var all []model.Project
	page := 1
	for {
		batch, err := a.catalog.ListProjects(ctx, page, a.cfg.CatalogPageSize)
		if err != nil {
			return nil, fmt.Errorf("list catalog projects: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < a.cfg.CatalogPageSize {
			break
		}
		page++
	}
	return all, nil
}

// run resolves the target projects, builds one flat cross-project document
// queue, and dispatches it through a single Dispatcher.Run call. This
// mirrors the original's process_projects_in_parallel, which builds one
// unified document_queue across every project before handing it to a
// single ProcessPoolExecutor rather than dispatching project by project —
// the continuous-queue worker pool (spec §4.2) stays saturated across
// project boundaries instead of idling between them.
func (a *app) run(ctx context.Context, opts cliOptions, timeLimit time.Duration) error {
	projects, err := a.resolveProjects(ctx, opts.projectIDs)
	if err != nil {
		return err
	}

	mode := queue.Mode{
		RetryFailed:  opts.retryFailed,
		RetrySkipped: opts.retrySkipped,
		Repair:       opts.repair,
		Reset:        opts.reset,
	}

	var tasks []model.DocumentTask
	for _, project := range projects {
		if ctx.Err() != nil {
			slog.Info("embedder: context cancelled, stopping before building queue for remaining projects")
			break
		}
		projectTasks, err := a.queue.BuildForProject(ctx, project, mode)
		if err != nil {
			slog.Error("embedder: failed to build queue for project", "project_id", project.ProjectID, "error", err)
			continue
		}
		tasks = append(tasks, projectTasks...)
	}

	a.tracker.Start(ctx, len(projects), len(tasks))
	defer a.tracker.Stop("run complete")

	if len(tasks) == 0 {
		return nil
	}

	var remaining time.Duration
	if timeLimit > 0 {
		remaining = timeLimit
	}

	reporter := newRunProgress(a.tracker, tasks)
	dispatch := dispatcher.New(a.logs, a.docs, reporter)

	result, err := dispatch.Run(ctx, tasks, dispatcher.Options{
		Workers:          a.cfg.FilesConcurrencySize,
		TimeLimit:        remaining,
		PhantomThreshold: time.Duration(a.cfg.PhantomWorkerThresholdHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("dispatcher run: %w", err)
	}

	slog.Info("embedder: run complete",
		"documents_processed", result.DocumentsProcessed,
		"time_limit_reached", result.TimeLimitReached, "pool_broken", result.ProcessPoolBroken)

	if result.ProcessPoolBroken {
		return fmt.Errorf("worker pool degraded to a single remaining worker")
	}
	return nil
}

// runProgress wraps the shared Tracker to preserve per-project
// UpdateCurrentProject/FinishProject bookkeeping once tasks from every
// project are interleaved across worker slots. It counts each project's
// remaining tasks down from the flattened queue and reports that project
// finished the moment its count reaches zero, regardless of which slot
// processed its last document.
type runProgress struct {
	tracker *progress.Tracker

	mu        sync.Mutex
	slotProj  map[int]string
	remaining map[string]int
}

func newRunProgress(tracker *progress.Tracker, tasks []model.DocumentTask) *runProgress {
	remaining := make(map[string]int)
	for _, t := range tasks {
		remaining[t.ProjectID]++
	}
	return &runProgress{
		tracker:   tracker,
		slotProj:  make(map[int]string),
		remaining: remaining,
	}
}

func (r *runProgress) StartDocument(workerSlot int, task model.DocumentTask) {
	r.mu.Lock()
	r.slotProj[workerSlot] = task.ProjectID
	r.mu.Unlock()

	r.tracker.UpdateCurrentProject(task.ProjectName)
	r.tracker.StartDocument(workerSlot, task)
}

func (r *runProgress) FinishDocument(workerSlot int, status model.ProcessingStatus) {
	r.tracker.FinishDocument(workerSlot, status)

	r.mu.Lock()
	projectID := r.slotProj[workerSlot]
	delete(r.slotProj, workerSlot)
	projectDone := false
	if projectID != "" {
		r.remaining[projectID]--
		if r.remaining[projectID] <= 0 {
			delete(r.remaining, projectID)
			projectDone = true
		}
	}
	r.mu.Unlock()

	if projectDone {
		r.tracker.FinishProject()
	}
}

// maybeStartAdmin starts the optional admin sidecar (healthz + metrics + a
// migration-runner endpoint) on a background goroutine when ADMIN_PORT is
// set, repurposing the teacher's cmd/server graceful-shutdown pattern. It
// always returns a stop function, a no-op when the sidecar was never
// started.
func (a *app) maybeStartAdmin(cfg *config.Config) func(context.Context) {
	if cfg.AdminPort == 0 {
		return func(context.Context) {}
	}

	deps := &router.Dependencies{
		DB:              a.pool,
		Version:         version,
		Metrics:         middleware.NewMetrics(a.metrics),
		MetricsReg:      a.metrics,
		AdminAuthSecret: cfg.AdminAuthSecret,
		AdminMigrateDeps: handler.AdminMigrateDeps{
			RunSQL: func(ctx context.Context, sql string) error {
				_, err := a.pool.Exec(ctx, sql)
				return err
			},
			MigrationsDir: "migrations",
		},
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AdminPort),
		Handler:      router.New(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("embedder: admin sidecar starting", "port", cfg.AdminPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("embedder: admin sidecar error", "error", err)
		}
	}()

	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("embedder: admin sidecar shutdown error", "error", err)
		}
	}
}
