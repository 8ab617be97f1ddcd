package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storefront/internal/dispatch"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/session"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	Email    string
	Password string
	Mode     string
	Timeout  time.Duration
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Render the catalog as a client would see it",
		Long: `Open a one-off client session against the configured backend, optionally
sign in and pick a mode, then print the first matching view.

Without credentials the student catalog is shown. With --email and
--password the session lands on the admin dashboard; --mode
student_catalog switches back.`,
		Example: `  storefront view
  storefront view --email admin@campus.edu --password s3cret
  storefront view --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "sign in with this email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password for --email")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "view mode (student_catalog|admin_dashboard)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "how long to wait for the view")

	return cmd
}

func runView(opts *ViewOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	var mode engine.ViewMode
	if opts.Mode != "" {
		if mode, err = engine.ParseViewMode(opts.Mode); err != nil {
			_ = out.Error(ErrCodeInput, "invalid mode", err.Error())
			return WrapExitError(ExitCommandError, "invalid mode", err)
		}
	}
	if (opts.Email == "") != (opts.Password == "") {
		return NewExitError(ExitCommandError, "--email and --password must be given together")
	}

	ctx, cancel := context.WithTimeout(cmdContext(cmd), opts.Timeout)
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer b.Close()

	mgr := session.NewManager(b.catalog, b.users)
	defer mgr.CloseAll()

	sess, err := mgr.Open()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open session", err)
	}

	// Watch before acting so no publish is missed.
	views, stop := sess.Views.Watch()
	defer stop()

	signedIn := false
	if opts.Email != "" {
		if err := sess.Dispatcher.SignIn(ctx, opts.Email, opts.Password); err != nil {
			msg := "sign in failed"
			var authErr *dispatch.AuthError
			if errors.As(err, &authErr) {
				msg = authErr.UserMessage()
			}
			_ = out.Error(ErrCodeAuth, msg, err.Error())
			return WrapExitError(ExitFailure, msg, err)
		}
		signedIn = true
	}
	if mode != "" {
		if mode == engine.ModeAdminDashboard && !signedIn {
			return NewExitError(ExitCommandError, "admin_dashboard requires --email and --password")
		}
		sess.Reconciler.RequestMode(mode)
	} else if signedIn {
		mode = engine.ModeAdminDashboard
	} else {
		mode = engine.ModeStudentCatalog
	}

	v, err := awaitView(ctx, views, mode, signedIn)
	if err != nil {
		return WrapExitError(ExitFailure, "no view received", err)
	}

	if err := out.Success(v, func(w io.Writer) error {
		return RenderView(w, v)
	}); err != nil {
		return err
	}
	if v.Status == engine.StatusUnavailable {
		return NewExitError(ExitFailure, v.Error)
	}
	return nil
}

// awaitView returns the first view in mode with the given authentication.
// Views of a mode are only published once its subscription has reported,
// so the first match is never a placeholder.
func awaitView(ctx context.Context, views <-chan engine.ViewDescription, mode engine.ViewMode, authenticated bool) (engine.ViewDescription, error) {
	for {
		select {
		case <-ctx.Done():
			return engine.ViewDescription{}, ctx.Err()
		case v, ok := <-views:
			if !ok {
				return engine.ViewDescription{}, errors.New("session closed")
			}
			if v.Mode == mode && v.IsAuthenticated == authenticated {
				return v, nil
			}
		}
	}
}
