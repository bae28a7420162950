package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"call-analytics-go/internal/app"
	"call-analytics-go/internal/storage"
	"call-analytics-go/internal/types"
)

var textExtensions = map[string]struct{}{
	".txt":  {},
	".text": {},
	".md":   {},
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var callID string
	var format string

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run one call (transcript or audio file) through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(args[0], format)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				st, procErr := a.Orchestrator.ProcessInput(cmd.Context(), callID, input)
				if st == nil {
					return procErr
				}
				if ctx.json() {
					if err := writeJSON(cmd, st); err != nil {
						return err
					}
					return procErr
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Call:      %s (%s)\n", st.CallID, storage.RecordKey(st))
				fmt.Fprintf(out, "Safety:    %s %s\n", st.Safety.Status, strings.Join(st.Safety.Categories, ","))
				if agent, ok := st.AgentName(); ok {
					fmt.Fprintf(out, "Agent:     %s\n", agent)
				}
				if mean, ok := st.Quality.Mean(); ok {
					fmt.Fprintf(out, "Quality:   %.2f over %d dimension(s)\n", mean, st.Quality.Count())
				}
				if st.Summary != nil {
					fmt.Fprintf(out, "Summary:   %s\n", st.Summary.Brief)
				}
				if st.ReviewReasons.Empty() {
					fmt.Fprintln(out, "Review:    none")
				} else {
					fmt.Fprintf(out, "Review:    %s\n", st.ReviewReasons.String())
				}
				for _, e := range st.StageErrors {
					fmt.Fprintf(out, "  %s [%s] %s\n", e.Stage, e.Kind, e.Message)
				}
				return procErr
			})
		},
	}

	cmd.Flags().StringVar(&callID, "call-id", "", "Call identifier (generated when empty)")
	cmd.Flags().StringVar(&format, "format", "", "Audio format tag (defaults to the file extension)")
	return cmd
}

// readInput treats text files as transcripts and anything else as audio.
func readInput(path, format string) (types.RawInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RawInput{}, fmt.Errorf("read input: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := textExtensions[ext]; ok && format == "" {
		return types.TextInput(string(data)), nil
	}
	if format == "" {
		format = ext
	}
	return types.AudioInput(data, format), nil
}
