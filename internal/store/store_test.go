package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
)

const (
	globalPath = "/storage/emulated/0/DCIM/global.jpg"
	appPath    = "/storage/emulated/0/Android/media/com.example/app.jpg"
)

// createAt writes the layout of version into a new database file.
func createAt(t *testing.T, path string, version int, internal bool) {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()

	if err := schema.Apply(ctx, db, schema.MustBuild(version, internal)); err != nil {
		t.Fatalf("failed to build version %d: %v", version, err)
	}
	if err := writeVersion(ctx, db, version); err != nil {
		t.Fatalf("failed to write version %d: %v", version, err)
	}
}

func execRaw(t *testing.T, path string, stmts ...string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}

func openAt(t *testing.T, path string, target int, opts *Options) *Handle {
	t.Helper()

	h, err := Open(context.Background(), path, target, opts)
	if err != nil {
		t.Fatalf("failed to open %s at %d: %v", path, target, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "external.db")
}

func storedVersion(t *testing.T, h *Handle) int {
	t.Helper()

	v, present, err := h.Version(context.Background())
	if err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if !present {
		t.Fatal("expected a version marker")
	}
	return v
}

type recordingHooks struct {
	mu      sync.Mutex
	deleted []string
	removed []int64
}

func (r *recordingHooks) DeleteFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, path)
}

func (r *recordingHooks) ObjectRemoved(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func TestOpenCreatesLatest(t *testing.T) {
	ctx := context.Background()
	h := openAt(t, dbPath(t), schema.Latest, &Options{EarlyUpgrade: true})

	if v := storedVersion(t, h); v != schema.Latest {
		t.Errorf("expected version %d, got %d", schema.Latest, v)
	}

	res := h.LastMigration()
	if res == nil {
		t.Fatal("expected a migration result")
	}
	if res.State != Uninitialized || !res.Rebuilt || res.FromPresent {
		t.Errorf("unexpected result for a new database: %+v", res)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}

	if err := h.Verify(ctx); err != nil {
		t.Errorf("fresh database does not verify: %v", err)
	}
	if err := h.CheckIntegrity(ctx); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestUpgradeFromPBackfillsOwnerPackage(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	createAt(t, path, schema.VersionP, false)
	execRaw(t, path,
		"INSERT INTO files (_data, media_type, _display_name) VALUES ('"+globalPath+"', 1, 'global.jpg')",
		"INSERT INTO files (_data, media_type, _display_name) VALUES ('"+appPath+"', 1, 'app.jpg')",
	)

	h := openAt(t, path, schema.VersionQ, &Options{EarlyUpgrade: true})

	res := h.LastMigration()
	if res.State != Stale || res.Rebuilt {
		t.Errorf("expected in place upgrade, got %+v", res)
	}
	want := []int{1000, 1001, 1002, 1003, 1004, 1005, 1006, 1007}
	if !reflect.DeepEqual(res.Boundaries, want) {
		t.Errorf("expected boundaries %v, got %v", want, res.Boundaries)
	}
	if v := storedVersion(t, h); v != schema.VersionQ {
		t.Errorf("expected version %d, got %d", schema.VersionQ, v)
	}

	count, err := h.CountFiles(ctx, 0)
	if err != nil {
		t.Fatalf("failed to count files: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows to survive the upgrade, got %d", count)
	}

	global, err := h.GetFileByPath(ctx, globalPath)
	if err != nil || global == nil {
		t.Fatalf("failed to get %s: %v", globalPath, err)
	}
	if global.OwnerPackageName.Valid {
		t.Errorf("expected no owner for %s, got %q", globalPath, global.OwnerPackageName.String)
	}
	if global.RelativePath.String != "DCIM/" {
		t.Errorf("expected relative path DCIM/, got %q", global.RelativePath.String)
	}

	app, err := h.GetFileByPath(ctx, appPath)
	if err != nil || app == nil {
		t.Fatalf("failed to get %s: %v", appPath, err)
	}
	if !app.OwnerPackageName.Valid || app.OwnerPackageName.String != "com.example" {
		t.Errorf("expected owner com.example, got %+v", app.OwnerPackageName)
	}
	if app.VolumeName.String != "external_primary" {
		t.Errorf("expected volume external_primary, got %q", app.VolumeName.String)
	}

	if err := h.Verify(ctx); err != nil {
		t.Errorf("upgraded database differs from a fresh one: %v", err)
	}
}

func TestUpgradedLayoutMatchesFresh(t *testing.T) {
	ctx := context.Background()

	for _, internal := range []bool{false, true} {
		path := dbPath(t)
		createAt(t, path, schema.VersionP, internal)
		h := openAt(t, path, schema.VersionQ, &Options{Internal: internal, EarlyUpgrade: true})

		got, err := schema.Snapshot(ctx, h.DB())
		if err != nil {
			t.Fatalf("failed to snapshot: %v", err)
		}
		want, err := freshLayout(ctx, schema.VersionQ, internal)
		if err != nil {
			t.Fatalf("failed to build fresh layout: %v", err)
		}
		if diffs := schema.Diff(want, got); len(diffs) > 0 {
			t.Errorf("internal=%v: upgraded layout differs: %v", internal, diffs)
		}
	}
}

func TestDowngradeWipesData(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	h, err := Open(ctx, path, schema.VersionQ, nil)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if err := h.InsertFile(ctx, &MediaRecord{Path: globalPath, MediaType: schema.MediaTypeImage}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	h.Close()

	h = openAt(t, path, schema.VersionP, &Options{EarlyUpgrade: true})

	res := h.LastMigration()
	if res.State != Ahead || res.From != schema.VersionQ {
		t.Errorf("expected downgrade from %d, got %+v", schema.VersionQ, res)
	}
	count, err := h.CountFiles(ctx, 0)
	if err != nil {
		t.Fatalf("failed to count files: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty files after downgrade, got %d rows", count)
	}
	if v := storedVersion(t, h); v != schema.VersionP {
		t.Errorf("expected version %d, got %d", schema.VersionP, v)
	}
	if err := h.Verify(ctx); err != nil {
		t.Errorf("downgraded database does not verify: %v", err)
	}
}

func TestReopenIsNoop(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	h, err := Open(ctx, path, schema.Latest, &Options{EarlyUpgrade: true})
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if err := h.InsertFile(ctx, &MediaRecord{Path: appPath, MediaType: schema.MediaTypeImage}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	h.Close()

	h = openAt(t, path, schema.Latest, &Options{EarlyUpgrade: true})
	res := h.LastMigration()
	if res.State != Current || res.Rebuilt || len(res.Boundaries) != 0 {
		t.Errorf("expected no-op on reopen, got %+v", res)
	}

	res, err = h.Migrate(ctx)
	if err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if res.State != Current {
		t.Errorf("expected current state, got %s", res.State)
	}

	count, _ := h.CountFiles(ctx, 0)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestLazyUpgrade(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	createAt(t, path, schema.VersionP, false)

	h := openAt(t, path, schema.VersionQ, nil)
	if v := storedVersion(t, h); v != schema.VersionP {
		t.Errorf("expected version %d before first write, got %d", schema.VersionP, v)
	}
	if h.LastMigration() != nil {
		t.Error("expected no migration before Writable")
	}

	if _, err := h.Writable(ctx); err != nil {
		t.Fatalf("Writable failed: %v", err)
	}
	if v := storedVersion(t, h); v != schema.VersionQ {
		t.Errorf("expected version %d after Writable, got %d", schema.VersionQ, v)
	}
}

func TestRebuildBelowMinimumVersion(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	execRaw(t, path,
		"CREATE TABLE legacy (x INTEGER)",
		"CREATE TABLE files (_id INTEGER PRIMARY KEY, _data TEXT)",
		"PRAGMA user_version = 500",
	)

	h := openAt(t, path, schema.Latest, &Options{EarlyUpgrade: true})

	res := h.LastMigration()
	if res.State != Stale || !res.Rebuilt || res.From != 500 {
		t.Errorf("expected rebuild from 500, got %+v", res)
	}
	var n int
	if err := h.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'legacy'").Scan(&n); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if n != 0 {
		t.Error("expected legacy table to be dropped by the rebuild")
	}
	if err := h.Verify(ctx); err != nil {
		t.Errorf("rebuilt database does not verify: %v", err)
	}
}

func TestUninitializedWithStrayObjects(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	execRaw(t, path,
		"CREATE TABLE files (_id INTEGER PRIMARY KEY, junk TEXT)",
		"CREATE VIEW junk_view AS SELECT junk FROM files",
	)

	h := openAt(t, path, schema.Latest, &Options{EarlyUpgrade: true})
	if res := h.LastMigration(); res.State != Uninitialized {
		t.Errorf("expected uninitialized, got %s", res.State)
	}
	if err := h.Verify(ctx); err != nil {
		t.Errorf("database does not verify: %v", err)
	}
}

func TestNegativeVersionIsUninitialized(t *testing.T) {
	path := dbPath(t)
	execRaw(t, path, "CREATE TABLE stray (x)", "PRAGMA user_version = -7")

	h := openAt(t, path, schema.Latest, &Options{EarlyUpgrade: true})
	if res := h.LastMigration(); res.State != Uninitialized || res.FromPresent {
		t.Errorf("expected uninitialized for a negative marker, got %+v", res)
	}
}

func TestBoundaryFailureKeepsLastCommitted(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)

	createAt(t, path, schema.VersionP, false)
	execRaw(t, path,
		"INSERT INTO files (_data, media_type) VALUES ('"+globalPath+"', 1)",
		"CREATE TRIGGER block_updates BEFORE UPDATE ON files BEGIN SELECT RAISE(ABORT, 'blocked'); END",
	)

	h := openAt(t, path, schema.VersionQ, nil)

	_, err := h.Writable(ctx)
	if !errors.Is(err, ErrBoundaryTransform) {
		t.Fatalf("expected ErrBoundaryTransform, got %v", err)
	}
	var be *BoundaryError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BoundaryError, got %T", err)
	}
	// The first update happens in the relative path backfill
	if be.Version != schema.VersionRelativePath {
		t.Errorf("expected failure at %d, got %d", schema.VersionRelativePath, be.Version)
	}
	if v := storedVersion(t, h); v != schema.VersionAudiobook {
		t.Errorf("expected version to stay at %d, got %d", schema.VersionAudiobook, v)
	}

	if _, err := h.DB().Exec("DROP TRIGGER block_updates"); err != nil {
		t.Fatalf("failed to drop trigger: %v", err)
	}

	res, err := h.Migrate(ctx)
	if err != nil {
		t.Fatalf("resumed migration failed: %v", err)
	}
	want := []int{schema.VersionRelativePath, schema.VersionVolumeName, schema.VersionLookupIndexes}
	if !reflect.DeepEqual(res.Boundaries, want) {
		t.Errorf("expected resumed boundaries %v, got %v", want, res.Boundaries)
	}
	if err := h.Verify(ctx); err != nil {
		t.Errorf("resumed database does not verify: %v", err)
	}
}

func TestUnsupportedTarget(t *testing.T) {
	for _, target := range []int{0, 800, schema.Latest + 1} {
		_, err := Open(context.Background(), dbPath(t), target, nil)
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("Open at %d: expected ErrUnsupportedVersion, got %v", target, err)
		}
	}
}

func writeGarbage(t *testing.T, path string) {
	t.Helper()
	garbage := bytes.Repeat([]byte("this is not a database "), 400)
	if err := os.WriteFile(path, garbage, 0644); err != nil {
		t.Fatalf("failed to write garbage: %v", err)
	}
}

func TestCorruptionHandler(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	writeGarbage(t, path)

	var calls []string
	handler := func(p string, cause error) {
		calls = append(calls, p)
		if err := DeleteDatabase(p); err != nil {
			t.Errorf("failed to delete database: %v", err)
		}
	}

	h := openAt(t, path, schema.Latest, &Options{EarlyUpgrade: true, ErrorHandler: handler})
	if len(calls) != 1 || calls[0] != path {
		t.Errorf("expected one handler call for %s, got %v", path, calls)
	}
	if v := storedVersion(t, h); v != schema.Latest {
		t.Errorf("expected version %d after recovery, got %d", schema.Latest, v)
	}
	if err := h.Verify(ctx); err != nil {
		t.Errorf("recovered database does not verify: %v", err)
	}
}

func TestCorruptionDefaultHandler(t *testing.T) {
	path := dbPath(t)
	writeGarbage(t, path)

	h := openAt(t, path, schema.Latest, &Options{EarlyUpgrade: true})
	if v := storedVersion(t, h); v != schema.Latest {
		t.Errorf("expected version %d after recovery, got %d", schema.Latest, v)
	}
}

func TestCorruptionHandlerKeepingFile(t *testing.T) {
	path := dbPath(t)
	writeGarbage(t, path)

	called := 0
	_, err := Open(context.Background(), path, schema.Latest, &Options{
		ErrorHandler: func(string, error) { called++ },
	})
	if err == nil {
		t.Fatal("expected Open to fail when the corrupt file is kept")
	}
	if called != 1 {
		t.Errorf("expected one handler call, got %d", called)
	}
}

func TestClosedHandle(t *testing.T) {
	ctx := context.Background()
	h, err := Open(ctx, MemoryPath, schema.Latest, nil)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	if _, err := h.Writable(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, _, err := h.Version(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	h := openAt(t, MemoryPath, schema.Latest, &Options{EarlyUpgrade: true})

	if err := h.InsertFile(ctx, &MediaRecord{Path: globalPath}); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := h.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, present, _ := h.Version(ctx); present {
		t.Error("expected no version marker after reset")
	}

	count, err := h.CountFiles(ctx, 0)
	if err != nil {
		t.Fatalf("failed to count after reset: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty files after reset, got %d", count)
	}
	if res := h.LastMigration(); res.State != Uninitialized {
		t.Errorf("expected recreation after reset, got %s", res.State)
	}
}

func TestVerifyReportsMismatch(t *testing.T) {
	ctx := context.Background()
	h := openAt(t, MemoryPath, schema.Latest, &Options{EarlyUpgrade: true})

	if _, err := h.DB().Exec("DROP INDEX volume_name_index"); err != nil {
		t.Fatalf("failed to drop index: %v", err)
	}

	err := h.Verify(ctx)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	var me *MismatchError
	if !errors.As(err, &me) || len(me.Differences) != 1 {
		t.Fatalf("expected one difference, got %v", err)
	}
}

func TestInternalLayout(t *testing.T) {
	ctx := context.Background()
	h := openAt(t, MemoryPath, schema.Latest, &Options{Internal: true, EarlyUpgrade: true})

	if _, err := h.InsertGenre(ctx, "Jazz"); !errors.Is(err, util.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for genres on internal, got %v", err)
	}
	var n int
	if err := h.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name LIKE 'audio_genres%'").Scan(&n); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no genre objects on internal, got %d", n)
	}
	if err := h.Verify(ctx); err != nil {
		t.Errorf("internal database does not verify: %v", err)
	}
}

func TestSQLiteVersion(t *testing.T) {
	if v := SQLiteVersion(); v == "" || v[0] != '3' {
		t.Errorf("unexpected SQLite version %q", v)
	}
}
