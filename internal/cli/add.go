package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nocturne-journal/nocturne/internal/models"
)

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <transcript>",
		Short: "Record a new dream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := models.JournalEntry{Transcript: strings.Join(args, " ")}

			saved, err := app.Store.Add(cmd.Context(), entry)
			if err != nil {
				return err
			}

			if saved.PendingSync {
				fmt.Fprintf(cmd.OutOrStdout(), "recorded #%d (queued for sync)\n", saved.LocalID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "recorded #%d\n", saved.LocalID)
			}
			return nil
		},
	}
}
