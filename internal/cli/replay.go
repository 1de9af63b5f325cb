package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult is the replay of one session's transition log.
type ReplaySessionResult struct {
	Session     string   `json:"session"`
	Transitions int      `json:"transitions"`
	Activations int      `json:"activations"`
	Completions int      `json:"completions"`
	Closed      bool     `json:"closed"`
	Consistent  bool     `json:"consistent"`
	Violations  []string `json:"violations,omitempty"`
	Lines       []string `json:"lines,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllConsistent bool                  `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay logged transitions and check their consistency",
		Long: `Replay the transition log written by viewer sessions and check that it
describes a valid activation history.

Every item is activated with a fresh generation and deactivated before the
next one starts. Completion, pause and loop events belong to the activation
they were logged under, and a close only follows a deactivation.

Exit codes:
  0 - All sessions are consistent
  1 - At least one session log is inconsistent
  2 - Command error (database not found, etc.)

Examples:
  seqctl replay --db ./seq.db
  seqctl replay --db ./seq.db --session s
  seqctl replay --db ./seq.db --format json -v`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sessions := []string{opts.Session}
	if opts.Session == "" {
		if sessions, err = st.Sessions(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllConsistent: true,
	}
	for _, id := range sessions {
		records, err := st.Transitions(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read session %s", id), err)
		}
		res := replaySession(id, records, opts.Verbose)
		if !res.Consistent {
			result.AllConsistent = false
		}
		result.Sessions = append(result.Sessions, res)
	}

	if formatter.JSON() {
		if err := formatter.Report(result, !result.AllConsistent, ErrCodeReplay, "inconsistent transition log"); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result)
	}
	if !result.AllConsistent {
		return NewExitError(ExitFailure, "inconsistent transition log")
	}
	return nil
}

func replaySession(id string, records []store.TransitionRecord, withLines bool) ReplaySessionResult {
	res := ReplaySessionResult{
		Session:     id,
		Transitions: len(records),
		Violations:  verifyTransitions(records),
	}
	res.Consistent = len(res.Violations) == 0
	for _, r := range records {
		switch sequencer.TransitionKind(r.Kind) {
		case sequencer.TransitionActivated:
			res.Activations++
			res.Closed = false
		case sequencer.TransitionCompleted:
			res.Completions++
		case sequencer.TransitionClosed:
			res.Closed = true
		}
		if withLines {
			res.Lines = append(res.Lines, formatRecord(r))
		}
	}
	return res
}

// verifyTransitions checks a session log against the activation rules and
// returns one message per violation.
func verifyTransitions(records []store.TransitionRecord) []string {
	var (
		violations []string
		active     *store.TransitionRecord
		lastGen    int64
	)
	fail := func(r store.TransitionRecord, format string, args ...any) {
		violations = append(violations, fmt.Sprintf("seq %d %s: %s", r.Seq, r.Kind, fmt.Sprintf(format, args...)))
	}
	owned := func(r store.TransitionRecord) {
		switch {
		case active == nil:
			fail(r, "no active item")
		case r.Gen != active.Gen || r.ItemID != active.ItemID:
			fail(r, "belongs to %s gen=%d, active is %s gen=%d", r.ItemID, r.Gen, active.ItemID, active.Gen)
		}
	}

	for i := range records {
		r := records[i]
		switch sequencer.TransitionKind(r.Kind) {
		case sequencer.TransitionActivated:
			if active != nil {
				fail(r, "%s gen=%d is still active", active.ItemID, active.Gen)
			}
			if r.Gen <= lastGen {
				fail(r, "generation %d does not increase past %d", r.Gen, lastGen)
			}
			if r.Progress != 0 {
				fail(r, "starts at progress %.2f", r.Progress)
			}
			lastGen = max(lastGen, r.Gen)
			active = &records[i]
		case sequencer.TransitionDeactivated:
			owned(r)
			active = nil
		case sequencer.TransitionCompleted:
			owned(r)
			if r.Progress < 1 {
				fail(r, "completes at progress %.2f", r.Progress)
			}
		case sequencer.TransitionDeferred, sequencer.TransitionLooped, sequencer.TransitionPaused,
			sequencer.TransitionResumed, sequencer.TransitionMediaFailed:
			owned(r)
		case sequencer.TransitionClosed:
			if active != nil {
				fail(r, "%s gen=%d was never deactivated", active.ItemID, active.Gen)
				active = nil
			}
		case sequencer.TransitionMuted, sequencer.TransitionReplaced:
			if active != nil && r.Gen != 0 && r.Gen != active.Gen {
				fail(r, "belongs to gen=%d, active is gen=%d", r.Gen, active.Gen)
			}
		default:
			fail(r, "unknown transition kind")
		}
	}
	return violations
}

func formatRecord(r store.TransitionRecord) string {
	item := r.ItemID
	if item == "" {
		item = "-"
	}
	line := fmt.Sprintf("%d %s %s %d/%d gen=%d", r.Seq, r.Kind, item, r.Group, r.Index, r.Gen)
	if r.Cause != "" {
		line += " cause=" + r.Cause
	}
	if r.Reason != "" {
		line += " reason=" + r.Reason
	}
	return line + fmt.Sprintf(" progress=%.2f", r.Progress)
}

func outputReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Consistent {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Transitions: %d, activations: %d, completions: %d, closed: %v\n",
			s.Transitions, s.Activations, s.Completions, s.Closed)
		for _, line := range s.Lines {
			fmt.Fprintf(w, "    %s\n", line)
		}
		for _, v := range s.Violations {
			fmt.Fprintf(w, "  Violation: %s\n", v)
		}
		fmt.Fprintln(w)
	}

	if result.AllConsistent {
		fmt.Fprintln(w, "✓ All sessions consistent")
		return
	}
	fmt.Fprintln(w, "✗ Inconsistent transition log")
}
