package main

import (
	"context"
	"fmt"

	"github.com/franz/media-index/internal/report"
	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/store"
	"github.com/franz/media-index/internal/util"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (MDB_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// targetVersion returns the configured schema version
func targetVersion() (int, error) {
	target := GetConfigInt("target", schema.Latest)
	if !schema.Supported(target) {
		return 0, fmt.Errorf("%w: target %d (supported %d..%d)",
			util.ErrInvalidConfig, target, schema.VersionP, schema.Latest)
	}
	return target, nil
}

// newEventLogger opens the JSONL event log when events-dir is set
func newEventLogger() *report.EventLogger {
	dir := viper.GetString("events-dir")
	if dir == "" {
		return report.NullLogger()
	}

	logLevel := report.LevelInfo // Default
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning // Only warnings and errors
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug // Everything
	}

	logger, err := report.NewEventLogger(dir, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	util.InfoLog("Event log: %s", logger.Path())
	return logger
}

// corruptionHandler deletes a corrupt database unless rebuilding is
// disabled, in which case Open fails.
func corruptionHandler(path string, cause error) {
	if !util.GetRebuildOnCorruption() {
		util.ErrorLog("Database %s is corrupt and rebuilding is disabled: %v", path, cause)
		return
	}
	util.WarnLog("Recreating corrupt database %s", path)
	if err := store.DeleteDatabase(path); err != nil {
		util.ErrorLog("Failed to delete %s: %v", path, err)
	}
}

// openHandle opens the configured database for the configured target
func openHandle(ctx context.Context, logger *report.EventLogger) (*store.Handle, error) {
	target, err := targetVersion()
	if err != nil {
		return nil, err
	}
	dbPath := GetConfigString("db", "media.db")

	opts := &store.Options{
		Internal:         viper.GetBool("internal"),
		EarlyUpgrade:     viper.GetBool("early-upgrade"),
		ErrorHandler:     corruptionHandler,
		NetworkOptimized: util.GetNetworkOptimized(dbPath),
		Events:           logger,
	}
	removeRetry := util.DefaultRetryConfig()
	if opts.NetworkOptimized {
		util.InfoLog("Applying network filesystem optimizations for %s", dbPath)
		opts.Retry = util.NASRetryConfig()
		opts.Retry.Retryable = util.IsBusyError
		removeRetry = util.NASRetryConfig()
	}
	// Album art and playlist files deleted by cleanup triggers
	store.SetHooks(store.DiskHooks{Retry: removeRetry})

	util.DebugLog("Opening database: %s (target %d, internal %v)", dbPath, target, opts.Internal)
	h, err := store.Open(ctx, dbPath, target, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return h, nil
}
