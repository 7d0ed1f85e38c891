package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franz/media-index/internal/store"
	"github.com/franz/media-index/internal/util"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema to the target version",
	Long: `Open the database and migrate it to the target version.

Depending on the stored version this:
- Creates the schema in an empty database
- Upgrades an older layout one boundary at a time, keeping its data
- Recreates a database that is newer than the target (data is lost)
- Rebuilds a database too old to upgrade in place (data is lost)
- Does nothing when the database is already at the target version

Use --verify to compare the result with a fresh build of the target.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("verify", false, "Verify the schema after migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	verify, _ := cmd.Flags().GetBool("verify")
	ctx := context.Background()

	logger := newEventLogger()
	defer logger.Close()

	h, err := openHandle(ctx, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	res, err := h.Migrate(ctx)
	if err != nil {
		var berr *store.BoundaryError
		if errors.As(err, &berr) {
			util.ErrorLog("Migration stopped at boundary %d (%s); the database stays at the previous version", berr.Version, berr.Name)
		}
		return err
	}

	printMigration(res)

	if verify {
		if err := h.Verify(ctx); err != nil {
			return err
		}
		util.SuccessLog("Schema matches version %d", h.Target())
	}

	return nil
}

func printMigration(res *store.MigrationResult) {
	from := "none"
	if res.FromPresent {
		from = fmt.Sprintf("%d", res.From)
	}

	switch {
	case res.State == store.Current:
		util.SuccessLog("Database already at version %d", res.To)
	case res.State == store.Uninitialized:
		util.SuccessLog("Database created at version %d in %v", res.To, res.Duration)
	case res.State == store.Ahead:
		util.WarnLog("Database recreated at version %d (was %s, previous data discarded)", res.To, from)
	case res.Rebuilt:
		util.WarnLog("Database rebuilt at version %d (was %s, too old to upgrade)", res.To, from)
	default:
		steps := make([]string, len(res.Boundaries))
		for i, b := range res.Boundaries {
			steps[i] = fmt.Sprintf("%d", b)
		}
		util.SuccessLog("Upgraded from %s to %d via %s in %v", from, res.To, strings.Join(steps, " → "), res.Duration)
	}
	util.DebugLog("Migration run %s (%s)", res.RunID, res.State)
}
