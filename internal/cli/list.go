package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nocturne-journal/nocturne/internal/models"
)

func newListCmd(app *App) *cobra.Command {
	var favoritesOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			star := color.New(color.FgYellow).SprintFunc()
			dim := color.New(color.Faint).SprintFunc()

			for _, e := range app.Store.List() {
				if favoritesOnly && !e.IsFavorite {
					continue
				}

				marker := " "
				if e.IsFavorite {
					marker = star("*")
				}
				suffix := ""
				if e.PendingSync {
					suffix = dim(" (pending sync)")
				}
				if e.AnalysisStatus == models.AnalysisDone {
					suffix += dim(" [" + e.Theme + "]")
				}

				fmt.Fprintf(out, "%s #%d  %s%s\n", marker, e.LocalID, headline(e), suffix)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&favoritesOnly, "favorites", "f", false, "show only favorites")
	return cmd
}

// headline prefers the analysis title and falls back to a trimmed
// transcript.
func headline(e models.JournalEntry) string {
	if e.Title != "" {
		return e.Title
	}
	const max = 60
	if len(e.Transcript) > max {
		return e.Transcript[:max] + "…"
	}
	return e.Transcript
}
