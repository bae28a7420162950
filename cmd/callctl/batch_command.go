package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"call-analytics-go/internal/app"
	"call-analytics-go/internal/dataset"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <workbook.xlsx>",
		Short: "Process every call listed in a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, skipped, err := dataset.Load(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				n := concurrency
				if n <= 0 {
					n = a.Config.BatchConcurrency
				}
				results := a.Orchestrator.Batch(cmd.Context(), jobs, n)
				summary := dataset.Summarize(results)

				if ctx.json() {
					return writeJSON(cmd, map[string]any{
						"summary": summary,
						"results": results,
						"skipped": skipped,
					})
				}

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					switch {
					case !r.Accepted:
						status = "rejected"
					case r.Error != "":
						status = "persist failed"
					case r.Flagged:
						status = "flagged"
					}
					rows = append(rows, []string{
						r.CallID,
						status,
						strings.Join(r.ReviewReasons, ","),
						strconv.Itoa(r.StageErrors),
						strconv.FormatInt(r.DurationMs, 10),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Call", "Status", "Review Reasons", "Stage Errors", "ms"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(out, "%d calls: %d accepted, %d flagged, %d need review, %d persist failures\n",
					summary.TotalCalls, summary.Accepted, summary.Flagged, summary.NeedsReview, summary.PersistFailed)
				for _, s := range skipped {
					fmt.Fprintf(out, "skipped row %d (%s): %s\n", s.Row, s.CallID, s.Reason)
				}
				if summary.PersistFailed > 0 {
					return fmt.Errorf("%d call(s) could not be persisted", summary.PersistFailed)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Calls processed at once (defaults to BATCH_CONCURRENCY)")
	return cmd
}
