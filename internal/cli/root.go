package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the command tree around a wired App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "nocturne",
		Short:         "Offline-first dream journal",
		Long:          "Nocturne keeps your dream journal on-device and syncs it with the backend whenever connectivity allows.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAddCmd(app),
		newListCmd(app),
		newFavoriteCmd(app),
		newDeleteCmd(app),
		newAnalyzeCmd(app),
		newSyncCmd(app),
		newStatusCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWatchCmd(app),
	)
	return root
}
