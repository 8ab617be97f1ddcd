package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/store"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	cmd.AddCommand(newUserListCommand(rootOpts))
	return cmd
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create an admin account",
		Example: `  storefront user add admin@campus.edu --password s3cret
  STOREFRONT_STORE_PATH=/var/lib/storefront.db storefront user add ops@campus.edu --password hunter2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(rootOpts, cmd, args[0], password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password (required)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runUserAdd(opts *RootOptions, cmd *cobra.Command, email, password string) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	p, err := st.CreateUser(cmdContext(cmd), email, password, cfg.Auth.BcryptCost)
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			_ = out.Error(ErrCodeInput, "account already exists", err.Error())
			return WrapExitError(ExitFailure, "account already exists", err)
		}
		_ = out.Error(ErrCodeBackend, "failed to create account", err.Error())
		return WrapExitError(ExitFailure, "failed to create account", err)
	}

	return out.Success(p, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created %s (%s)\n", p.Email, p.UID)
		return err
	})
}

func newUserListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List admin accounts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open store", err)
			}
			defer st.Close()

			users, err := st.ListUsers(cmdContext(cmd))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list accounts", err)
			}

			return rootOpts.formatter(cmd).Success(users, func(w io.Writer) error {
				if len(users) == 0 {
					_, err := fmt.Fprintln(w, "No accounts.")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EMAIL\tUID\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Email, u.UID, u.CreatedAt)
				}
				return tw.Flush()
			})
		},
	}
}

// cmdContext returns the command's context, or Background when the command
// was executed without one.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
