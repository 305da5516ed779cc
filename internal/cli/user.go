package cli

import (
	"bufio"
	"errors"
	"fmt"
	"step_tracker_backend/internal/service"
	"strings"

	"github.com/spf13/cobra"
)

type userCreateOptions struct {
	*RootOptions
	Password string
	Admin    bool
}

func newUserCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage participant and admin accounts",
	}

	cmd.AddCommand(newUserCreateCommand(opts))
	cmd.AddCommand(newSetAdminCommand(opts, "promote", true))
	cmd.AddCommand(newSetAdminCommand(opts, "demote", false))
	return cmd
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &userCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Long: `Create an account with the same rules as self-registration.

The password is read from --password, or from the first line of stdin when the flag is omitted.

Example:
  stepctl user create coordinator --admin < password.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return createUser(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "grant the admin flag")
	return cmd
}

func createUser(cmd *cobra.Command, opts *userCreateOptions, name string) error {
	password := opts.Password
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("password required: pass --password or pipe it on stdin")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	e, closeDB, err := opts.open()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := cmd.Context()
	user, err := service.NewAuthService(e.users, e.cfg).Register(ctx, name, password)
	if err != nil {
		return err
	}
	if opts.Admin {
		if err := service.NewUserService(e.users).SetAdmin(ctx, user.Name, true); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d, admin=%t)\n", user.Name, user.ID, opts.Admin)
	return nil
}

func newSetAdminCommand(opts *RootOptions, use string, admin bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: fmt.Sprintf("Set the admin flag of an account to %t", admin),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeDB, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := service.NewUserService(e.users).SetAdmin(cmd.Context(), args[0], admin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: admin=%t\n", args[0], admin)
			return nil
		},
	}
}
