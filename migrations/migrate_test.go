package migrations

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping migration integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return pool
}

func runSQL(t *testing.T, pool *pgxpool.Pool, filename string) {
	t.Helper()
	sql, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		t.Fatalf("failed to create vector extension: %v", err)
	}
	_, err = pool.Exec(ctx, string(sql))
	if err != nil {
		t.Fatalf("failed to execute %s: %v", filename, err)
	}
}

func tableExists(t *testing.T, pool *pgxpool.Pool, table string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", table, err)
	}
	return exists
}

func TestMigration_UpCreatesAllTables(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_initial_schema.up.sql")

	for _, table := range []string{"projects", "documents", "document_chunks", "processing_logs"} {
		if !tableExists(t, pool, table) {
			t.Errorf("table %s does not exist after up migration", table)
		}
	}
}

func TestMigration_UpIsIdempotent(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	// Run up twice — second run should not error (idempotent).
	runSQL(t, pool, "001_initial_schema.up.sql")
	runSQL(t, pool, "001_initial_schema.up.sql")
}

func TestMigration_DownAndUpCycle(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	// We don't check table absence between down/up because concurrent test
	// packages (repository) share this database and may recreate tables.
	runSQL(t, pool, "001_initial_schema.down.sql")
	runSQL(t, pool, "001_initial_schema.up.sql")

	for _, table := range []string{"projects", "documents", "document_chunks", "processing_logs"} {
		if !tableExists(t, pool, table) {
			t.Errorf("table %s does not exist after down+up cycle", table)
		}
	}
}

func TestMigration_VectorColumnsExist(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_initial_schema.up.sql")

	for _, table := range []string{"document_chunks", "documents"} {
		var dataType string
		err := pool.QueryRow(context.Background(), `
			SELECT udt_name FROM information_schema.columns
			WHERE table_name = $1 AND column_name = 'embedding'
		`, table).Scan(&dataType)
		if err != nil {
			t.Fatalf("failed to check embedding column on %s: %v", table, err)
		}
		if dataType != "vector" {
			t.Errorf("%s.embedding column type = %q, want %q", table, dataType, "vector")
		}
	}
}

func TestMigration_HNSWIndexesCreated(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_initial_schema.up.sql")
	runSQL(t, pool, "002_hnsw_indexes.up.sql")

	for _, idx := range []string{"idx_document_chunks_embedding_hnsw", "idx_documents_embedding_hnsw"} {
		var exists bool
		err := pool.QueryRow(context.Background(),
			"SELECT EXISTS (SELECT FROM pg_indexes WHERE indexname = $1)", idx,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check index %s: %v", idx, err)
		}
		if !exists {
			t.Errorf("index %s does not exist after hnsw migration", idx)
		}
	}
}
