package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// bootstrapSchema runs the startup routine of spec §4.8: ensure the pgvector
// extension exists, optionally wipe the schema for a dev reset, then apply
// every migrations/*.up.sql file in order, skipping HNSW index files when
// asked (a large corpus's first run can defer them to reduce load time).
func (a *app) bootstrapSchema(ctx context.Context, skipHNSWIndexes bool) error {
	if a.cfg.AutoCreateExtension {
		if _, err := a.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			return fmt.Errorf("create vector extension: %w", err)
		}
	}

	if a.cfg.ResetDBOnStartup {
		if a.cfg.Environment == "production" {
			return fmt.Errorf("RESET_DB is not permitted in the production environment")
		}
		slog.Warn("embedder: RESET_DB set, dropping existing ingestion tables")
		const dropSQL = `
			DROP TABLE IF EXISTS document_chunks CASCADE;
			DROP TABLE IF EXISTS processing_logs CASCADE;
			DROP TABLE IF EXISTS documents CASCADE;
			DROP TABLE IF EXISTS projects CASCADE;
		`
		if _, err := a.pool.Exec(ctx, dropSQL); err != nil {
			return fmt.Errorf("reset schema: %w", err)
		}
	}

	files, err := selectMigrationFiles("migrations", skipHNSWIndexes)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("embedder: no migrations directory found, skipping schema bootstrap")
			return nil
		}
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for _, name := range files {
		sqlBytes, err := os.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := a.pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		slog.Info("embedder: applied migration", "file", name)
	}

	return nil
}

// selectMigrationFiles lists the *.up.sql files in dir in apply order,
// optionally excluding HNSW index migrations.
func selectMigrationFiles(dir string, skipHNSWIndexes bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		if skipHNSWIndexes && strings.Contains(e.Name(), "hnsw") {
			slog.Info("embedder: skipping HNSW index migration", "file", e.Name())
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
