package main

import (
	"context"
	"fmt"

	"github.com/franz/media-index/internal/util"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every object in the database",
	Long: `Drop all tables, indexes, views and triggers and clear the stored
version. All indexed data is lost. The schema is created again by the next
command that opens the database.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("yes", false, "Confirm that all data may be deleted")
}

func runReset(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("reset deletes all data; pass --yes to confirm")
	}
	ctx := context.Background()

	logger := newEventLogger()
	defer logger.Close()

	h, err := openHandle(ctx, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.Reset(ctx); err != nil {
		return err
	}

	util.SuccessLog("Database %s reset", h.Path())
	return nil
}
