package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every submission and every stored screenshot",
		Long: `Delete every submission and every stored screenshot.

Accounts are kept. This cannot be undone, so --yes is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}

			e, closeDB, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB()

			svc, err := e.verificationService(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.ResetAll(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d submissions and %d files\n", result.DeletedSubmissions, result.DeletedFiles)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
