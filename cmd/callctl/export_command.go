package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"call-analytics-go/internal/dataset"
	"call-analytics-go/internal/storage"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Write agent rankings and the review queue to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *storage.Store) error {
				rankings, err := store.AgentRankings(cmd.Context())
				if err != nil {
					return err
				}
				review, err := store.ManualReviewQueue(cmd.Context(), 0)
				if err != nil {
					return err
				}
				if err := dataset.ExportReport(args[0], rankings, review); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d agents and %d review items to %s\n", len(rankings), len(review), args[0])
				return nil
			})
		},
	}
}
