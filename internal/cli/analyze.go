package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nocturne-journal/nocturne/internal/analysis"
	"github.com/nocturne-journal/nocturne/internal/quota"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	var keepImage bool

	cmd := &cobra.Command{
		Use:   "analyze <id>",
		Short: "Run AI analysis on an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}

			opts := analysis.DefaultOptions()
			opts.ReplaceImage = !keepImage
			opts.Language = app.Config.Language

			entry, err := app.Orchestrator.Analyze(cmd.Context(), id, opts)
			if err != nil {
				var quotaErr *quota.QuotaExceededError
				if errors.As(err, &quotaErr) {
					return fmt.Errorf("analysis allowance used up on the %s tier, upgrade to continue", quotaErr.Tier)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n%s\n", entry.Title, entry.Interpretation)
			if entry.ShareableQuote != "" {
				fmt.Fprintf(out, "\n“%s”\n", entry.ShareableQuote)
			}
			if entry.ImageGenerationFailed {
				fmt.Fprintln(out, "\n(image generation failed, try again later)")
			} else if entry.ImageURL != "" {
				fmt.Fprintf(out, "\nimage: %s\n", entry.ImageURL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepImage, "keep-image", false, "keep the current image instead of generating a new one")
	return cmd
}
