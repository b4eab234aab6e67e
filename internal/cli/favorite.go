package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newFavoriteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle an entry's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}

			if _, ok := app.Store.Get(id); !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "entry #%d not found\n", id)
				return nil
			}

			entry, err := app.Store.ToggleFavorite(cmd.Context(), id)
			if err != nil {
				return err
			}

			state := "unfavorited"
			if entry.IsFavorite {
				state = "favorited"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d\n", state, id)
			return nil
		},
	}
}
