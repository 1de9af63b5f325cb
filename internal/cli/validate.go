package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	// FromEnv layers the files over the environment policy instead of the
	// built-in defaults.
	FromEnv bool
}

// PolicyResult is the validation outcome of one policy file.
type PolicyResult struct {
	File     string         `json:"file"`
	Valid    bool           `json:"valid"`
	Problems []string       `json:"problems,omitempty"`
	Policy   *config.Policy `json:"policy,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool           `json:"valid"`
	Files []PolicyResult `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <policy.cue>...",
		Short: "Validate viewer policy files",
		Long: `Validate CUE viewer policy files against the embedded policy schema.

A policy file sets any subset of the viewer policy fields, for example:

  default_duration_ms: 6000
  hold_delay_ms:       300
  reel_loop:           false

Unknown fields, wrong types and out of range values are reported. The
effective policy is printed with --verbose.

Exit codes:
  0 - All files valid
  1 - At least one file violates the schema
  2 - Command error (file not found, environment invalid)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.FromEnv, "env", false, "apply files on top of the environment policy")

	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	base := config.DefaultPolicy()
	if opts.FromEnv {
		cfg, err := config.Load()
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid environment", err)
		}
		base = cfg.Policy()
	}

	result := ValidationResult{Valid: true, Files: make([]PolicyResult, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("validating %s", file)
		policy, err := config.LoadPolicyFile(file, base)
		if err != nil {
			var verr *config.ValidationError
			if !errors.As(err, &verr) {
				_ = formatter.Error(ErrCodeGeneric, err.Error(), file)
				return WrapExitError(ExitCommandError, "failed to read policy", err)
			}
			result.Valid = false
			result.Files = append(result.Files, PolicyResult{File: file, Problems: verr.Problems})
			continue
		}
		result.Files = append(result.Files, PolicyResult{File: file, Valid: true, Policy: &policy})
	}

	if formatter.JSON() {
		if err := formatter.Report(result, !result.Valid, ErrCodePolicy, "policy validation failed"); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "policy validation failed")
	}
	return nil
}

func outputValidateText(f *OutputFormatter, result ValidationResult) {
	w := f.Writer
	for _, r := range result.Files {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s\n", r.File)
			if f.Verbose {
				p := r.Policy
				fmt.Fprintf(w, "  default_duration_ms=%d tick_interval_ms=%d pagination_threshold=%d\n",
					p.DefaultDurationMS, p.TickIntervalMS, p.PaginationThreshold)
				fmt.Fprintf(w, "  swipe_threshold=%g dismiss_threshold=%g hold_delay_ms=%d\n",
					p.SwipeThreshold, p.DismissThreshold, p.HoldDelayMS)
				fmt.Fprintf(w, "  pause_on_widget=%v muted=%v reel_loop=%v\n", p.PauseOnWidget, p.Muted, p.ReelLoop)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.File)
		for _, p := range r.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if result.Valid {
		fmt.Fprintln(w, "✓ All policies valid")
		return
	}
	fmt.Fprintln(w, "✗ Validation failed")
}
