package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/store"
)

func createDatabase(t *testing.T, path string, version int) *store.Handle {
	t.Helper()
	h, err := store.Open(context.Background(), path, version, &store.Options{EarlyUpgrade: true})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return h
}

func hasProblem(results []checkResult) (errors, warnings int) {
	for _, r := range results {
		if r.error {
			errors++
		} else if r.warning {
			warnings++
		}
	}
	return errors, warnings
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	results := checkDatabase(dbPath, schema.Latest, false)

	// Should not error - database will be created on first run
	if len(results) != 1 || results[0].error {
		t.Fatalf("non-existent database check should not error: %+v", results)
	}
	if _, err := os.Stat(dbPath); err == nil {
		t.Error("checkDatabase created the database")
	}
}

func TestCheckDatabase_Current(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")
	h := createDatabase(t, dbPath, schema.Latest)

	rec := &store.MediaRecord{Path: "/storage/emulated/0/Music/a.mp3", MediaType: schema.MediaTypeAudio}
	if err := h.InsertFile(context.Background(), rec); err != nil {
		t.Fatalf("failed to insert test file: %v", err)
	}
	h.Close()

	results := checkDatabase(dbPath, schema.Latest, false)

	if errs, warns := hasProblem(results); errs != 0 || warns != 0 {
		t.Fatalf("expected clean results, got %+v", results)
	}
	if !strings.Contains(results[0].message, "1 files") {
		t.Errorf("expected file count in message, got: %s", results[0].message)
	}
}

func TestCheckDatabase_Stale(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")
	createDatabase(t, dbPath, schema.VersionP).Close()

	results := checkDatabase(dbPath, schema.Latest, false)

	errs, warns := hasProblem(results)
	if errs != 0 || warns != 1 {
		t.Fatalf("expected one warning, got %+v", results)
	}

	// The check must not migrate
	h, err := store.Open(context.Background(), dbPath, schema.VersionP, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if v, _, _ := h.Version(context.Background()); v != schema.VersionP {
		t.Errorf("stored version = %d after doctor, want %d", v, schema.VersionP)
	}
}

func TestCheckDatabase_Mismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")
	h := createDatabase(t, dbPath, schema.Latest)
	if _, err := h.DB().Exec("CREATE TABLE stray (x INTEGER)"); err != nil {
		t.Fatal(err)
	}
	h.Close()

	results := checkDatabase(dbPath, schema.Latest, false)

	if errs, _ := hasProblem(results); errs != 1 {
		t.Fatalf("expected a schema error, got %+v", results)
	}
	if !strings.Contains(results[len(results)-1].message, "differ") {
		t.Errorf("unexpected message: %s", results[len(results)-1].message)
	}
}

func TestCheckDatabase_NotADatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "media.db")
	junk := []byte(strings.Repeat("this is not a database file\n", 200))
	if err := os.WriteFile(dbPath, junk, 0644); err != nil {
		t.Fatal(err)
	}

	results := checkDatabase(dbPath, schema.Latest, false)

	if len(results) != 1 || !results[0].error {
		t.Fatalf("expected an error, got %+v", results)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("doctor removed the corrupt file: %v", err)
	}
}

func TestCheckDatabase_Directory(t *testing.T) {
	results := checkDatabase(t.TempDir(), schema.Latest, false)

	if len(results) != 1 || !results[0].error {
		t.Fatalf("expected an error for a directory, got %+v", results)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir())

	if result.error {
		t.Errorf("disk space check should never error: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected disk space information in message")
	}
}

func TestCheckNetwork_Local(t *testing.T) {
	result := checkNetwork(t.TempDir())

	if result.error {
		t.Errorf("network check should never error: %s", result.message)
	}
}
