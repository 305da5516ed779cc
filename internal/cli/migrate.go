package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users and forms tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeDB, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB()

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", e.db.Dialector.Name())
			return nil
		},
	}
}
