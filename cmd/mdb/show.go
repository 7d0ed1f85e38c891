package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/util"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the schema objects and indexed files",
	Long: `Display the database in a human-readable format.

Shows:
- Stored schema version and target
- Tables with their column counts, indexes, views and triggers
- Indexed files with their derived attributes (with --files)

The database is migrated to the target version first.`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("files", false, "List indexed files")
	showCmd.Flags().Int("limit", 50, "Maximum number of files to list (0 = all)")
	showCmd.Flags().Bool("objects-only", false, "Show only schema objects")
}

func runShow(cmd *cobra.Command, args []string) error {
	showFiles, _ := cmd.Flags().GetBool("files")
	limit, _ := cmd.Flags().GetInt("limit")
	objectsOnly, _ := cmd.Flags().GetBool("objects-only")
	ctx := context.Background()

	logger := newEventLogger()
	defer logger.Close()

	h, err := openHandle(ctx, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	db, err := h.Writable(ctx)
	if err != nil {
		return err
	}

	version, _, err := h.Version(ctx)
	if err != nil {
		return err
	}
	layout, err := schema.Snapshot(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	fmt.Printf("Database: %s\n", h.Path())
	fmt.Printf("Version:  %d (target %d, %s layout)\n", version, h.Target(), layoutName(h.Internal()))
	fmt.Printf("Objects:  %d\n\n", layout.Count())

	fmt.Printf("Tables (%d):\n", len(layout.Tables))
	for _, name := range sortedKeys(layout.Tables) {
		fmt.Printf("  %-28s %d columns\n", name, len(layout.Tables[name]))
	}
	printNames("Indexes", layout.Indexes)
	printNames("Views", layout.Views)
	printNames("Triggers", layout.Triggers)

	if objectsOnly {
		return nil
	}

	total, err := h.CountFiles(ctx, 0)
	if err != nil {
		return err
	}
	fmt.Printf("\nFiles: %s", util.FormatCount(int64(total)))
	for _, mt := range []struct {
		name string
		typ  int
	}{
		{"audio", schema.MediaTypeAudio},
		{"video", schema.MediaTypeVideo},
		{"image", schema.MediaTypeImage},
		{"playlist", schema.MediaTypePlaylist},
	} {
		n, err := h.CountFiles(ctx, mt.typ)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Printf(" | %s %s", util.FormatCount(int64(n)), mt.name)
		}
	}
	fmt.Println()

	if !showFiles {
		return nil
	}

	files, err := h.ListFiles(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Println()
	for _, f := range files {
		fmt.Printf("%s\n", f.Path)
		fmt.Printf("  %s, %s, bucket %s (%s)\n", f.MimeType, util.FormatBytes(f.Size), f.BucketDisplayName, f.BucketID)
		if f.Title != "" {
			fmt.Printf("  %s - %s [%s]\n", f.Artist, f.Title, f.Album)
		}
		if f.RelativePath.Valid {
			fmt.Printf("  volume %s, relative path %s\n", f.VolumeName.String, f.RelativePath.String)
		}
		if f.OwnerPackageName.Valid {
			fmt.Printf("  owner %s\n", f.OwnerPackageName.String)
		}
		if f.IsDownload {
			fmt.Printf("  download\n")
		}
	}
	if limit > 0 && total > limit {
		fmt.Printf("\n... and %s more (use --limit 0 to list all)\n", util.FormatCount(int64(total-limit)))
	}

	return nil
}

func layoutName(internal bool) string {
	if internal {
		return "internal"
	}
	return "external"
}

func printNames(title string, objects map[string]string) {
	fmt.Printf("%s (%d):\n", title, len(objects))
	for _, name := range sortedKeys(objects) {
		fmt.Printf("  %s\n", name)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
