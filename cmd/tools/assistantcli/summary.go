package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/educhain/assistant/backend/internal/app"
	perfmodel "github.com/educhain/assistant/backend/internal/model/performance"
)

func newSummaryCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize learner performance",
		Long: `Reads a performance snapshot as JSON from --file or stdin, e.g.
{"coursesCompleted":3,"averageScore":87.5,"badgesEarned":2,"certificatesIssued":1,"timeSpent":12}
and prints the generated summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var snapshot perfmodel.Snapshot
			if err := json.NewDecoder(in).Decode(&snapshot); err != nil {
				return fmt.Errorf("decoding snapshot: %w", err)
			}

			a, err := app.New(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary := a.Summarizer.Summarize(cmd.Context(), snapshot)
			fmt.Fprintln(cmd.OutOrStdout(), summary.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot JSON file (default stdin)")
	return cmd
}
