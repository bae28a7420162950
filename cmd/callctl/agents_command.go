package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"call-analytics-go/internal/actionable"
	"call-analytics-go/internal/aggregator"
	"call-analytics-go/internal/storage"
	"call-analytics-go/internal/types"
)

func newAgentsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "Rank agents by average quality over eligible calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *storage.Store) error {
				rankings, err := store.AgentRankings(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, rankings)
				}
				if len(rankings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No eligible calls recorded yet")
					return nil
				}
				headers := []string{"#", "Agent", "Calls", "Average"}
				aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight}
				for _, d := range types.Dimensions {
					headers = append(headers, string(d))
					aligns = append(aligns, alignRight)
				}
				rows := make([][]string, 0, len(rankings))
				for i, p := range rankings {
					row := []string{strconv.Itoa(i + 1), p.AgentName, strconv.Itoa(p.TotalCalls), fmt.Sprintf("%.2f", p.AverageOverall)}
					for _, d := range types.Dimensions {
						if v, ok := p.Averages[d]; ok {
							row = append(row, fmt.Sprintf("%.2f", v))
						} else {
							row = append(row, "-")
						}
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var since, until string
	cmd := &cobra.Command{
		Use:   "report <agent>",
		Short: "Show an agent's performance report and coaching card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := args[0]
			var (
				window storage.TimeRange
				err    error
			)
			if window.From, err = storage.ParseTimeBound(since); err != nil {
				return err
			}
			if window.To, err = storage.ParseTimeBound(until); err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(store *storage.Store) error {
				scores, err := store.AgentScoresInRange(cmd.Context(), agent, window)
				if err != nil {
					return err
				}
				if len(scores) == 0 {
					return errors.New("no eligible calls for " + agent)
				}
				rep := aggregator.BuildReport(agent, scores)
				card := actionable.Generate(rep)
				if ctx.json() {
					return writeJSON(cmd, map[string]any{"report": rep, "coaching": card})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %d eligible calls, rated %s\n", rep.AgentName, rep.TotalCalls, rep.Rating)
				fmt.Fprintf(out, "Average %.2f  median %.2f  min %.2f  max %.2f  std-dev %.2f\n",
					rep.Overall.Average, rep.Overall.Median, rep.Overall.Min, rep.Overall.Max, rep.Overall.StdDev)

				rows := [][]string{}
				for _, d := range types.Dimensions {
					ds, ok := rep.Dimensions[d]
					if !ok {
						continue
					}
					rows = append(rows, []string{string(d), fmt.Sprintf("%.2f", ds.Average), strconv.Itoa(ds.Samples), string(ds.Trend)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Dimension", "Average", "Samples", "Trend"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
				))
				fmt.Fprintf(out, "Insight: %s\nAction:  %s\nImpact:  %s\n", card.Insight, card.Action, card.Impact)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Only calls recorded at or after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&until, "until", "", "Only calls recorded before this date (YYYY-MM-DD or RFC 3339)")
	return cmd
}
