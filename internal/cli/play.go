package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/gvarikaa/new-DapDip-sub001/internal/app"
	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Author   string
	For      time.Duration
	Dwell    time.Duration
	Session  string
	Collab   string
	Database string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play [stories|reels]",
		Short: "Play a session against the HTTP collaborator",
		Long: `Play a stories or reels session on the real clock.

Items are fetched from COLLAB_BASE_URL (or --collab), views are reported
back as they finish and every transition is logged to the store for
replay. Stories play until the viewer closes; reels move on every --dwell
until the feed runs out. --for bounds either.

Examples:
  seqctl serve --fixture feed.yaml &
  seqctl play stories --author alice --db play.db
  seqctl replay --db play.db`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{app.ModeStories, app.ModeReels},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := app.ModeStories
			if len(args) == 1 {
				mode = args[0]
			}
			return runPlay(cmd, opts, mode)
		},
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "open at this author's first unseen story")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 = until done)")
	cmd.Flags().DurationVar(&opts.Dwell, "dwell", app.DefaultDwell, "time on each reel")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id for the transition log")
	cmd.Flags().StringVar(&opts.Collab, "collab", "", "collaborator base URL (default from COLLAB_BASE_URL)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store path (default from SEQ_DB_PATH)")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *PlayOptions, mode string) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	if opts.Collab != "" {
		cfg.Collab.BaseURL = opts.Collab
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}

	var player *app.Player
	application := fx.New(app.Play(cfg), fx.Populate(&player), fxLogger(opts.RootOptions))
	if err := application.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to build player", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start player", err)
	}
	result, runErr := player.Run(ctx, app.PlayOptions{
		Mode:     mode,
		Author:   opts.Author,
		Duration: opts.For,
		Dwell:    opts.Dwell,
		Session:  opts.Session,
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), application.StopTimeout())
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		formatter.VerboseLog("stop: %v", err)
	}

	if runErr != nil {
		_ = formatter.Error(ErrCodeGeneric, runErr.Error(), nil)
		return WrapExitError(ExitCommandError, "play failed", runErr)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "session %s (%s)\n", result.Session, result.Mode)
	fmt.Fprintf(w, "  activations=%d completions=%d loops=%d\n", result.Activations, result.Completions, result.Loops)
	fmt.Fprintf(w, "  final state=%s", result.State)
	if result.ItemID != "" {
		fmt.Fprintf(w, " item=%s", result.ItemID)
	}
	fmt.Fprintln(w)
	return nil
}
