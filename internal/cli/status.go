package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity, connectivity, queue and quota state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			ident := app.Session.Current()
			if ident.Guest() {
				fmt.Fprintf(out, "identity: guest (%s…)\n", ident.Fingerprint[:8])
			} else {
				fmt.Fprintf(out, "identity: %s (%s tier)\n", ident.UserID, ident.Tier)
			}

			if app.Gate.Online(ctx) {
				fmt.Fprintf(out, "network:  %s\n", color.GreenString("online"))
			} else {
				fmt.Fprintf(out, "network:  %s\n", color.RedString("offline"))
			}

			fmt.Fprintf(out, "entries:  %d\n", len(app.Store.List()))
			fmt.Fprintf(out, "queued:   %d\n", app.Queue.Len())

			if ident.Tier.Paid() {
				fmt.Fprintln(out, "quota:    unlimited")
				return nil
			}
			status, err := app.Quota.Usage(ctx)
			if err != nil {
				count, cErr := app.Quota.GuestAnalysisCount(ctx)
				if cErr == nil && ident.Guest() {
					fmt.Fprintf(out, "quota:    %d analysis used locally (server unreachable)\n", count)
				}
				return nil
			}
			fmt.Fprintf(out, "quota:    analysis %d/%d, exploration %d/%d\n",
				status.AnalysisUsed, status.AnalysisLimit, status.ExplorationUsed, status.ExplorationLimit)
			return nil
		},
	}
}
