package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"call-analytics-go/internal/storage"
	"call-analytics-go/internal/types"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var flagged bool
	var limit int

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List calls waiting for manual review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *storage.Store) error {
				var entries []types.IndexEntry
				var err error
				if flagged {
					entries, err = store.FlaggedQueue(cmd.Context(), limit)
				} else {
					entries, err = store.ManualReviewQueue(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Review queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.CallID,
						e.AgentName,
						e.Status,
						e.ReviewReasons.String(),
						strings.Join(e.FlaggedCategories, ","),
						e.RecordedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Call", "Agent", "Status", "Reasons", "Categories", "Recorded"},
					rows, nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&flagged, "flagged", false, "Only show calls flagged by the content safety check")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows (0 for all)")
	return cmd
}
