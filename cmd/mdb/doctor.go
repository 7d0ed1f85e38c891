package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/store"
	"github.com/franz/media-index/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the database and environment",
	Long: `Run diagnostic checks without modifying the database.

This command checks:
- SQLite version
- Database accessibility and integrity
- Stored schema version against the target
- Schema structure against a fresh build of the stored version
- Network filesystem detection
- Disk space of the database directory`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== MDB Doctor - Database Diagnostics ===")
	util.InfoLog("")

	target, err := targetVersion()
	if err != nil {
		return err
	}
	dbPath := viper.GetString("db")
	internal := viper.GetBool("internal")

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check database file, version and layout
	results = append(results, checkDatabase(dbPath, target, internal)...)

	// 3. Check filesystem
	if dbPath != "" && dbPath != store.MemoryPath {
		dir := filepath.Dir(dbPath)
		results = append(results, checkNetwork(dir))
		results = append(results, checkDiskSpace(dir))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed.")
		return fmt.Errorf("database diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Run 'mdb migrate' to bring the database to the target version.")
	} else {
		util.SuccessLog("✅ All checks passed!")
	}

	return nil
}

func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase inspects the database without migrating or deleting it.
func checkDatabase(dbPath string, target int, internal bool) []checkResult {
	if dbPath == "" {
		return []checkResult{{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if util.IsNotExist(err) {
			return []checkResult{{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created at version %d on first run)", dbPath, target),
			}}
		}
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}}
	}
	if !info.Mode().IsRegular() {
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}}
	}

	ctx := context.Background()
	h, err := store.Open(ctx, dbPath, target, &store.Options{
		Internal:     internal,
		ErrorHandler: func(string, error) {}, // leave the file alone
	})
	if err != nil {
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}}
	}
	defer h.Close()

	if err := h.CheckIntegrity(ctx); err != nil {
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}}
	}

	results := []checkResult{{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %s files)", dbPath, util.FormatBytes(info.Size()), countFiles(ctx, h)),
	}}
	return append(results, checkSchema(ctx, h))
}

func countFiles(ctx context.Context, h *store.Handle) string {
	var n int64
	if err := h.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return "no"
	}
	return util.FormatCount(n)
}

// checkSchema compares the stored version with the target and, when they
// agree, the structure with a fresh build.
func checkSchema(ctx context.Context, h *store.Handle) checkResult {
	version, present, err := h.Version(ctx)
	if err != nil {
		return checkResult{name: "Schema", error: true, message: err.Error()}
	}

	switch {
	case !present:
		return checkResult{
			name:    "Schema",
			warning: true,
			message: fmt.Sprintf("no version stored (will be created at %d)", h.Target()),
		}
	case version > h.Target():
		return checkResult{
			name:    "Schema",
			warning: true,
			message: fmt.Sprintf("version %d is newer than target %d (migrating discards all data)", version, h.Target()),
		}
	case version < schema.MinUpgradeVersion:
		return checkResult{
			name:    "Schema",
			warning: true,
			message: fmt.Sprintf("version %d is too old to upgrade (migrating rebuilds it)", version),
		}
	case version < h.Target():
		return checkResult{
			name:    "Schema",
			warning: true,
			message: fmt.Sprintf("version %d, upgrade to %d pending", version, h.Target()),
		}
	}

	if err := h.Verify(ctx); err != nil {
		var mismatch *store.MismatchError
		if errors.As(err, &mismatch) {
			return checkResult{
				name:    "Schema",
				error:   true,
				message: fmt.Sprintf("version %d but %d objects differ (first: %s)", version, len(mismatch.Differences), mismatch.Differences[0]),
			}
		}
		return checkResult{name: "Schema", error: true, message: err.Error()}
	}

	return checkResult{
		name:    "Schema",
		message: fmt.Sprintf("version %d matches declared layout", version),
	}
}

func checkNetwork(dir string) checkResult {
	info, err := util.DetectNetworkFilesystem(dir)
	if err != nil {
		return checkResult{
			name:    "Filesystem",
			warning: true,
			message: fmt.Sprintf("cannot detect filesystem type: %v", err),
		}
	}
	if info.IsNetwork {
		return checkResult{
			name:    "Filesystem",
			warning: !viper.GetBool("network-optimized"),
			message: fmt.Sprintf("%s network mount at %s (use --network-optimized)", info.Protocol, info.MountPath),
		}
	}
	return checkResult{
		name:    "Filesystem",
		message: "local",
	}
}

func checkDiskSpace(path string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    "Disk space",
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	// Available bytes = available blocks * block size
	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Warn if less than 100MiB available or >95% used
	warning := false
	warningMsg := ""
	if availBytes < 100*humanize.MiByte {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    "Disk space",
		warning: warning,
		message: fmt.Sprintf("%s available%s", humanize.IBytes(availBytes), warningMsg),
	}
}
