package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/gvarikaa/new-DapDip-sub001/internal/app"
	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Fixture string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a fixture collaborator over HTTP",
		Long: `Serve the collaborator operations from a YAML fixture.

The server answers the routes the HTTP collaborator client calls, plus
/healthz and /metrics. Flags override SERVE_ADDR and SEQ_FIXTURE.

The server runs until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from SERVE_ADDR)")
	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "fixture file (default from SEQ_FIXTURE)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	if opts.Addr != "" {
		cfg.Serve.Addr = opts.Addr
	}
	if opts.Fixture != "" {
		cfg.Serve.Fixture = opts.Fixture
	}

	application := fx.New(app.Serve(cfg), fxLogger(opts.RootOptions))
	if err := application.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to build server", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start server", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), application.StopTimeout())
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

// fxLogger keeps fx's own event log out of normal output.
func fxLogger(opts *RootOptions) fx.Option {
	if opts.Verbose {
		return fx.Options()
	}
	return fx.NopLogger
}
