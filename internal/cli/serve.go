package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/storefront/internal/httpapi"
	"github.com/roach88/storefront/internal/metrics"
	"github.com/roach88/storefront/internal/session"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready, if set, receives the bound listen address once the server
	// accepts connections.
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the storefront HTTP API.

Each client opens a session (POST /api/session) and receives a live view
that follows its sign-in state. Views stream over server-sent events at
/api/view/events. Prometheus metrics are served at /metrics.

Example:
  storefront serve --config storefront.yaml
  STOREFRONT_BACKEND_KIND=nats storefront serve --addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions := session.NewManager(b.catalog, b.users,
		session.WithIdleTimeout(cfg.Session.IdleTimeout),
		session.WithMetrics(m),
	)

	api := httpapi.New(sessions, httpapi.Options{
		CookieName: cfg.Session.CookieName,
		Metrics:    m,
		Gatherer:   reg,
	})

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{Handler: api}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "backend", cfg.Backend.Kind)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx, cfg.Session.SweepInterval)
	})

	if b.sqlCatalog != nil {
		g.Go(func() error {
			return b.sqlCatalog.Poll(gctx, cfg.Store.PollInterval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})

	if opts.Ready != nil {
		opts.Ready <- ln.Addr().String()
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	slog.Info("server stopped")
	return nil
}
