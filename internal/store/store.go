package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/franz/media-index/internal/report"
	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options controls how a database is opened.
type Options struct {
	// Internal leaves out the playlist and genre objects.
	Internal bool

	// EarlyUpgrade migrates during Open instead of on the first Writable call.
	EarlyUpgrade bool

	// ErrorHandler is called when the file turns out not to be a usable
	// database. The default deletes the database files so that the retry
	// starts from an empty file.
	ErrorHandler func(path string, cause error)

	// NetworkOptimized applies pragmas suited to network filesystems.
	NetworkOptimized bool

	// Events receives migration events. Nil disables event logging.
	Events *report.EventLogger

	// Retry controls retries of busy and locked errors. Defaults to
	// util.DatabaseRetryConfig.
	Retry *util.RetryConfig
}

// Handle manages one media index database and its schema lifecycle.
type Handle struct {
	mu       sync.Mutex
	db       *sql.DB
	path     string
	target   int
	opts     Options
	migrated bool
	last     *MigrationResult
	closed   bool
}

// Open opens or creates the database at path for the given target version.
// With EarlyUpgrade the schema is migrated before Open returns; otherwise on
// the first call to Writable.
func Open(ctx context.Context, path string, target int, opts *Options) (*Handle, error) {
	if !schema.Supported(target) {
		return nil, fmt.Errorf("%w: %d (supported %d..%d)", ErrUnsupportedVersion, target, schema.VersionP, schema.Latest)
	}
	if opts == nil {
		opts = &Options{}
	}

	h := &Handle{
		path:   path,
		target: target,
		opts:   *opts,
	}
	if h.opts.ErrorHandler == nil {
		h.opts.ErrorHandler = defaultErrorHandler
	}
	if h.opts.Retry == nil {
		h.opts.Retry = util.DatabaseRetryConfig()
	}

	err := h.connect(ctx)
	if err != nil && h.recoverable(err) {
		err = h.recover(ctx, err)
	}
	if err != nil {
		return nil, err
	}
	h.events().Log(&report.Event{Level: report.LevelDebug, Event: report.EventOpen, Database: path, ToVersion: target})

	if h.opts.EarlyUpgrade {
		if _, err := h.Writable(ctx); err != nil {
			h.Close()
			return nil, err
		}
	}

	return h, nil
}

func (h *Handle) dsn() string {
	if h.path == MemoryPath {
		return MemoryPath
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", h.path)
}

// connect opens the connection pool and probes the version marker, which
// is the first read to fail on a file that is not a database.
func (h *Handle) connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", h.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if h.opts.NetworkOptimized {
		if err := applyNetworkPragmas(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to apply network pragmas: %w", err)
		}
	}

	err = util.Retry(h.opts.Retry, func() error {
		_, _, err := readVersion(ctx, db)
		return err
	}, "probe "+h.path)
	if err != nil {
		db.Close()
		return err
	}

	h.db = db
	return nil
}

func (h *Handle) recoverable(err error) bool {
	return h.path != MemoryPath && isCorruption(err)
}

// recover hands the broken file to the error handler and reconnects once.
func (h *Handle) recover(ctx context.Context, cause error) error {
	util.ErrorLog("Database %s is corrupt: %v", h.path, cause)
	h.events().LogCorruption(h.path, cause)

	if h.db != nil {
		h.db.Close()
		h.db = nil
	}
	h.migrated = false
	h.opts.ErrorHandler(h.path, cause)

	if err := h.connect(ctx); err != nil {
		return fmt.Errorf("failed to reopen %s after corruption: %w", h.path, err)
	}
	return nil
}

func defaultErrorHandler(path string, cause error) {
	util.WarnLog("Deleting corrupt database %s", path)
	if err := DeleteDatabase(path); err != nil {
		util.ErrorLog("Failed to delete %s: %v", path, err)
	}
}

// DeleteDatabase removes the database file and its journal files.
func DeleteDatabase(path string) error {
	var errs []error
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !util.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyNetworkPragmas applies SQLite optimizations for network filesystems
func applyNetworkPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		// NORMAL is safe with WAL; fsync only at checkpoints
		"PRAGMA synchronous = NORMAL",

		// Keep temp tables in memory instead of on network disk
		"PRAGMA temp_store = MEMORY",

		// 64MB cache to reduce network round-trips
		"PRAGMA cache_size = -64000",

		// Only applies before the first table is created
		"PRAGMA page_size = 8192",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Writable returns the connection pool after making sure the schema is at
// the target version.
func (h *Handle) Writable(ctx context.Context) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if !h.migrated {
		if _, err := h.runMigration(ctx); err != nil {
			return nil, err
		}
	}
	return h.db, nil
}

// Migrate runs the migration engine now, even if the handle already
// migrated. A second run on an unchanged database is a no-op.
func (h *Handle) Migrate(ctx context.Context) (*MigrationResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	return h.runMigration(ctx)
}

func (h *Handle) runMigration(ctx context.Context) (*MigrationResult, error) {
	res, err := util.RetryWithBackoff(h.opts.Retry, func() (*MigrationResult, error) {
		return h.migrate(ctx)
	}, "migrate "+h.path)

	if err != nil && h.recoverable(err) {
		if rerr := h.recover(ctx, err); rerr != nil {
			return nil, rerr
		}
		res, err = h.migrate(ctx)
	}
	if err != nil {
		h.events().LogError(report.EventError, h.path, err)
		return res, fmt.Errorf("failed to migrate %s to version %d: %w", h.path, h.target, err)
	}

	h.migrated = true
	h.last = res
	return res, nil
}

// Reset drops every object and clears the version marker. The next
// Writable call creates the schema from scratch.
func (h *Handle) Reset(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	err := h.inTx(ctx, func(tx *sql.Tx) error {
		if err := MakePristine(ctx, tx); err != nil {
			return err
		}
		return clearVersion(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("failed to reset %s: %w", h.path, err)
	}

	h.migrated = false
	h.last = nil
	h.events().Log(&report.Event{Level: report.LevelInfo, Event: report.EventReset, Database: h.path})
	return nil
}

// Transaction executes a function within a transaction on the migrated
// database.
func (h *Handle) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if _, err := h.Writable(ctx); err != nil {
		return err
	}
	return h.inTx(ctx, fn)
}

// Version returns the stored version marker.
func (h *Handle) Version(ctx context.Context) (version int, present bool, err error) {
	if h.isClosed() {
		return 0, false, ErrClosed
	}
	return readVersion(ctx, h.db)
}

// LastMigration returns the result of the last successful migration run, or
// nil if none ran on this handle.
func (h *Handle) LastMigration() *MigrationResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Path returns the database path.
func (h *Handle) Path() string { return h.path }

// Target returns the version the handle migrates to.
func (h *Handle) Target() int { return h.target }

// Internal reports whether the handle uses the internal layout.
func (h *Handle) Internal() bool { return h.opts.Internal }

// DB returns the underlying database connection without migrating.
func (h *Handle) DB() *sql.DB {
	return h.db
}

// Close closes the database connection
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handle) events() *report.EventLogger {
	return h.opts.Events
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (h *Handle) CheckIntegrity(ctx context.Context) error {
	if h.isClosed() {
		return ErrClosed
	}

	var result string
	err := h.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return storageError("integrity check query failed", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// MismatchError lists the differences found by Verify.
type MismatchError struct {
	Version     int
	Differences []string
}

func (e *MismatchError) Error() string {
	if len(e.Differences) == 1 {
		return fmt.Sprintf("schema differs from version %d: %s", e.Version, e.Differences[0])
	}
	return fmt.Sprintf("schema differs from version %d in %d places (first: %s)",
		e.Version, len(e.Differences), e.Differences[0])
}

func (e *MismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

// Verify compares the database structure with a fresh build of the target
// version.
func (h *Handle) Verify(ctx context.Context) error {
	if h.isClosed() {
		return ErrClosed
	}
	start := time.Now()

	want, err := freshLayout(ctx, h.target, h.opts.Internal)
	if err != nil {
		return err
	}
	got, err := schema.Snapshot(ctx, h.db)
	if err != nil {
		return storageError("failed to snapshot "+h.path, err)
	}

	diffs := schema.Diff(want, got)
	h.events().LogVerify(h.path, h.target, diffs)
	util.DebugLog("Verify: %s checked %d objects in %v", h.path, want.Count(), time.Since(start))

	if len(diffs) > 0 {
		return &MismatchError{Version: h.target, Differences: diffs}
	}
	return nil
}

// freshLayout builds version in a scratch in-memory database and returns
// its layout.
func freshLayout(ctx context.Context, version int, internal bool) (*schema.Layout, error) {
	objects, err := schema.Build(version, internal)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := schema.Apply(ctx, db, objects); err != nil {
		return nil, fmt.Errorf("failed to build scratch schema: %w", err)
	}
	return schema.Snapshot(ctx, db)
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", MemoryPath)
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}
