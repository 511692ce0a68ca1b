package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// NewPool creates a long-lived connection pool for the queue builder, repair
// service, and admin surface — processes that run for the life of a batch
// and issue many short queries.
func NewPool(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("repository.NewPool: parse config: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = 2
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.ConnConfig.RuntimeParams["application_name"] = "embedder-controller"

	cfg.AfterConnect = pgxvector.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("repository.NewPool: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository.NewPool: ping: %w", err)
	}

	return pool, nil
}

// WorkerPoolConfig controls the tiny, throwaway pool each worker process
// opens for itself (spec §9: workers are isolated OS processes, not
// goroutines sharing a connection pool).
type WorkerPoolConfig struct {
	WorkerID           string
	MaxConns           int32 // default 3 (1 + overflow 2)
	StatementTimeoutMs int   // session-level statement_timeout
	LockTimeoutMs      int   // session-level lock_timeout
}

// NewWorkerPool creates a small, process-unique connection pool for a single
// worker. Prepared-statement caching is disabled (simple protocol) because
// each worker's connections are short-lived and their statement cache would
// never be reused across the process's one document-at-a-time workload.
func NewWorkerPool(ctx context.Context, databaseURL string, wc WorkerPoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("repository.NewWorkerPool: parse config: %w", err)
	}

	maxConns := wc.MaxConns
	if maxConns <= 0 {
		maxConns = 3
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	appName := "embedder-worker"
	if wc.WorkerID != "" {
		appName = fmt.Sprintf("embedder-worker-%s", wc.WorkerID)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = appName
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	statementTimeout := wc.StatementTimeoutMs
	if statementTimeout <= 0 {
		statementTimeout = 300_000
	}
	lockTimeout := wc.LockTimeoutMs
	if lockTimeout <= 0 {
		lockTimeout = 60_000
	}
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", statementTimeout)
	cfg.ConnConfig.RuntimeParams["lock_timeout"] = fmt.Sprintf("%d", lockTimeout)

	cfg.AfterConnect = pgxvector.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("repository.NewWorkerPool: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository.NewWorkerPool: ping: %w", err)
	}

	return pool, nil
}

// RepairPoolConfig controls the controller's dedicated connection pool for
// the Repair Service's cleanup operations.
type RepairPoolConfig struct {
	MaxConns           int32 // default 2
	StatementTimeoutMs int   // session-level statement_timeout, floor 300000ms
	LockTimeoutMs      int   // session-level lock_timeout, floor 60000ms
}

// NewRepairPool creates a small dedicated connection pool for the Repair
// Service's cleanup operations (spec.md:224): bulk and per-document deletes
// run on long-held locks against potentially large document_chunks tables,
// so they get their own statement_timeout/lock_timeout budget instead of
// inheriting the controller's general-purpose NewPool settings, the same
// separation of concerns NewWorkerPool already draws for worker processes.
func NewRepairPool(ctx context.Context, databaseURL string, rc RepairPoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("repository.NewRepairPool: parse config: %w", err)
	}

	maxConns := rc.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.RuntimeParams["application_name"] = "embedder-repair"

	statementTimeout := rc.StatementTimeoutMs
	if statementTimeout < 300_000 {
		statementTimeout = 300_000
	}
	lockTimeout := rc.LockTimeoutMs
	if lockTimeout < 60_000 {
		lockTimeout = 60_000
	}
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", statementTimeout)
	cfg.ConnConfig.RuntimeParams["lock_timeout"] = fmt.Sprintf("%d", lockTimeout)

	cfg.AfterConnect = pgxvector.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("repository.NewRepairPool: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository.NewRepairPool: ping: %w", err)
	}

	return pool, nil
}
