package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch server state and drain queued mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !app.Session.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "guest mode: entries live on this device only")
				return nil
			}

			before := app.Queue.Len()
			if err := app.Engine.Hydrate(ctx); err != nil {
				app.Log.Warn(ctx, "hydrate failed", "error", err)
			}
			if err := app.Engine.Drain(ctx); err != nil {
				return err
			}

			after := app.Queue.Len()
			switch {
			case after == 0 && before > 0:
				fmt.Fprintf(cmd.OutOrStdout(), "synced %d queued change(s)\n", before)
			case after > 0:
				fmt.Fprintf(cmd.OutOrStdout(), "%d change(s) still queued\n", after)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "up to date")
			}
			return nil
		},
	}
}
