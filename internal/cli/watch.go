package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay running, probing connectivity and syncing on reconnect",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Drain whatever is already queued, then let the watcher's
			// reconnect subscription handle the rest.
			if err := app.Engine.Drain(ctx); err != nil {
				app.Log.Warn(ctx, "initial drain failed", "error", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "watching connectivity (ctrl-c to stop)")
			app.Watcher.Run(ctx)
			return nil
		},
	}
}
