package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gvarikaa/new-DapDip-sub001/internal/harness"
	"github.com/gvarikaa/new-DapDip-sub001/internal/logger"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // default: <scenario dir>/golden
	Database  string // keep the transition log here instead of in memory
	Trace     bool   // print every transition
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string         `json:"name"`
	Pass   bool           `json:"pass"`
	Golden string         `json:"golden,omitempty"` // "match", "updated", "mismatch" or "" when absent
	Errors []string       `json:"errors,omitempty"`
	Final  *harness.Final `json:"final,omitempty"`
	Trace  []string       `json:"trace,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>...",
		Short: "Run scenarios against the fixture backend",
		Long: `Run YAML scenarios and check their assertions and golden traces.

Each scenario drives a stories viewer or reels feed session on a fake clock
against its fixture. When a golden file named after the scenario exists in
the golden directory, the trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  seqctl run ./scenarios
  seqctl run ./scenarios --filter "reel_*"
  seqctl run ./scenarios/tap_back.yaml --trace
  seqctl run ./scenarios --update
  seqctl run ./scenarios/widget_pause.yaml --db ./seq.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default <scenario dir>/golden)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "write the transition log to this SQLite database")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print every transition")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}
	formatter.VerboseLog("found %d scenario(s)", len(files))

	result := RunResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Report(result, false, "", "")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var runOpts []harness.Option
	if opts.Verbose {
		log, _, err := logger.New(logger.Options{Level: "debug", Writer: cmd.ErrOrStderr()})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create logger", err)
		}
		runOpts = append(runOpts, harness.WithLogger(log))
	}
	if opts.Database != "" {
		runOpts = append(runOpts, harness.WithDatabase(opts.Database))
	}

	for _, file := range files {
		res := runScenario(file, opts, runOpts)
		if !formatter.JSON() {
			printScenario(cmd, res)
		}
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	failed := result.Failed > 0
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if formatter.JSON() {
		if err := formatter.Report(result, failed, ErrCodeTestFailed, msg); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if !failed {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}
	if failed {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}

// findScenarioFiles returns path itself when it is a file, otherwise every
// YAML file below it whose base name matches filter.
func findScenarioFiles(path string, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func runScenario(file string, opts *RunOptions, runOpts []harness.Option) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	if opts.Database != "" && scenario.SessionID == "" {
		// One transition log session per scenario in a shared database.
		scenario.SessionID = scenario.Name
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	res := ScenarioResult{
		Name:   scenario.Name,
		Pass:   result.Pass,
		Errors: result.Errors,
		Final:  &result.Final,
	}
	if opts.Trace {
		for _, ev := range result.Trace {
			res.Trace = append(res.Trace, ev.String())
		}
	}

	goldenPath := goldenFilePath(file, scenario.Name, opts.GoldenDir)
	current := harness.FormatGolden(scenario.Name, result)

	if opts.Update {
		if err := writeGolden(goldenPath, current); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		res.Golden = "updated"
		return res
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// Assertions only.
	case err != nil:
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case bytes.Equal(want, current):
		res.Golden = "match"
	default:
		res.Pass = false
		res.Golden = "mismatch"
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return res
}

func goldenFilePath(scenarioFile, name, dir string) string {
	if dir == "" {
		dir = filepath.Join(filepath.Dir(scenarioFile), "golden")
	}
	return filepath.Join(dir, name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScenario(cmd *cobra.Command, res ScenarioResult) {
	w := cmd.OutOrStdout()
	mark := "✓"
	if !res.Pass {
		mark = "✗"
	}
	suffix := ""
	if res.Golden == "updated" {
		suffix = " (golden updated)"
	}
	fmt.Fprintf(w, "%s %s%s\n", mark, res.Name, suffix)
	for _, line := range res.Trace {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if res.Final != nil && (len(res.Trace) > 0 || !res.Pass) {
		fmt.Fprintf(w, "  %s\n", res.Final)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
