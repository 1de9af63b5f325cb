package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

const failingScenario = `name: never_closes
description: a single story that is still playing after one second
mode: stories
data:
  stories:
    - id: a1
      kind: text
      caption: only
      duration_hint: 5s
      author: {id: alice, username: alice}
      created_at: 2024-05-01T10:00:00Z
steps:
  - open: {author: alice}
  - advance: 1s
assertions:
  - type: state
    state: closed
`

func execRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunScenariosWithGoldens(t *testing.T) {
	out, err := execRun(t, "text", scenariosDir, "--golden-dir", goldenDir)
	require.NoError(t, err, out)

	for _, name := range []string{"auto_advance", "tap_back", "widget_pause", "reel_pagination", "video_ended", "submit_failure"} {
		assert.Contains(t, out, "✓ "+name)
	}
	assert.Contains(t, out, "Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestRunFilter(t *testing.T) {
	out, err := execRun(t, "text", scenariosDir, "--golden-dir", goldenDir, "--filter", "reel_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ reel_pagination")
	assert.Contains(t, out, "1 total")
}

func TestRunJSON(t *testing.T) {
	out, err := execRun(t, "json", scenariosDir, "--golden-dir", goldenDir, "--filter", "tap_back")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	sc := resp.Data.Scenarios[0]
	assert.Equal(t, "tap_back", sc.Name)
	assert.True(t, sc.Pass)
	assert.Equal(t, "match", sc.Golden)
	require.NotNil(t, sc.Final)
}

func TestRunTrace(t *testing.T) {
	out, err := execRun(t, "text", scenariosDir, "--golden-dir", goldenDir, "--filter", "auto_advance", "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "activated a1")
	assert.Contains(t, out, "final state=closed")
}

func TestRunGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auto_advance.golden"), []byte("# auto_advance\nstale\n"), 0o644))

	out, err := execRun(t, "text", scenariosDir, "--golden-dir", dir, "--filter", "auto_advance")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ auto_advance")
	assert.Contains(t, out, "does not match golden file")
}

func TestRunUpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()

	out, err := execRun(t, "text", scenariosDir, "--golden-dir", dir, "--filter", "tap_back", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	got, err := os.ReadFile(filepath.Join(dir, "tap_back.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "tap_back.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRunFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "never_closes.yaml")
	require.NoError(t, os.WriteFile(file, []byte(failingScenario), 0o644))

	out, err := execRun(t, "text", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ never_closes")
	assert.Contains(t, out, "Assertion failed: state")
	assert.Contains(t, out, "Summary: 0 passed, 1 failed, 1 total")
}

func TestRunWritesTransitionLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "seq.db")

	_, err := execRun(t, "text", scenariosDir, "--golden-dir", goldenDir, "--filter", "auto_advance", "--db", db)
	require.NoError(t, err)

	out, err := execReplay(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Session: auto_advance")
	assert.Contains(t, out, "✓ All sessions consistent")
}

func TestRunNonExistentPath(t *testing.T) {
	_, err := execRun(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunEmptyDir(t *testing.T) {
	out, err := execRun(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = findScenarioFiles(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	assert.Contains(t, cmd.Long, "golden")
	assert.Contains(t, cmd.Long, "Exit codes")
}
