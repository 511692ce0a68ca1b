package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrationFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("-- noop"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestSelectMigrationFiles_OrderAndFilter(t *testing.T) {
	dir := writeMigrationFiles(t,
		"002_hnsw_indexes.up.sql",
		"002_hnsw_indexes.down.sql",
		"001_initial_schema.up.sql",
		"001_initial_schema.down.sql",
		"readme.md",
	)

	files, err := selectMigrationFiles(dir, false)
	if err != nil {
		t.Fatalf("selectMigrationFiles() error: %v", err)
	}
	want := []string{"001_initial_schema.up.sql", "002_hnsw_indexes.up.sql"}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("files = %v, want %v", files, want)
	}
}

func TestSelectMigrationFiles_SkipHNSW(t *testing.T) {
	dir := writeMigrationFiles(t, "001_initial_schema.up.sql", "002_hnsw_indexes.up.sql")

	files, err := selectMigrationFiles(dir, true)
	if err != nil {
		t.Fatalf("selectMigrationFiles() error: %v", err)
	}
	if len(files) != 1 || files[0] != "001_initial_schema.up.sql" {
		t.Errorf("files = %v, want only the base schema migration", files)
	}
}

func TestSelectMigrationFiles_MissingDir(t *testing.T) {
	if _, err := selectMigrationFiles(filepath.Join(t.TempDir(), "missing"), false); err == nil {
		t.Fatal("selectMigrationFiles() error = nil, want error for missing directory")
	}
}
