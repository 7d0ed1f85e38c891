package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/franz/media-index/internal/scan"
	"github.com/franz/media-index/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Index media files of a directory into the database",
	Long: `Walk a directory and index every media file it contains.

Audio tags are read from each file. Paths are stored below --mount, so a
directory copied from a device can be indexed under its device path (for
example /storage/emulated/0). Bucket, owner package, download, relative
path and volume attributes are derived from the stored path.

Files whose size and modification time are unchanged are skipped, so the
scan can be repeated.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("mount", "/storage/emulated/0", "device path the directory is indexed under (empty keeps host paths)")
	scanCmd.Flags().Int("concurrency", 4, "number of files read in parallel")
	viper.BindPFlag("mount", scanCmd.Flags().Lookup("mount"))
	viper.BindPFlag("concurrency", scanCmd.Flags().Lookup("concurrency"))
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	source := args[0]

	// Verify source exists
	if _, err := os.Stat(source); util.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", source)
	}

	concurrency := GetConfigInt("concurrency", 4)

	logger := newEventLogger()
	defer logger.Close()

	h, err := openHandle(ctx, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	util.InfoLog("Source: %s", source)
	util.InfoLog("Concurrency: %d", concurrency)

	scanner := scan.New(&scan.Config{
		Handle:      h,
		MountPoint:  viper.GetString("mount"),
		Concurrency: concurrency,
		Logger:      logger,
	})

	startTime := time.Now()

	result, err := scanner.Scan(ctx, source)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	util.SuccessLog("Scan complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Files discovered: %d", result.FilesDiscovered)
	util.InfoLog("  Files updated: %d", result.FilesUpdated)
	util.InfoLog("  Files unchanged: %d", result.FilesSkipped)
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	return nil
}
