package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "auto_advance.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "auto_advance", s.Name)
	assert.Equal(t, ModeStories, s.Mode)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "..", "fixtures", "alice.yaml"), s.Fixture)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "alice", s.Steps[0].Open.Author)
	assert.Equal(t, 16*time.Second, s.Steps[1].Advance)
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, 3, *s.Assertions[1].Count)
}

func TestLoadScenario_InlineData(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "widget_pause.yaml"))
	require.NoError(t, err)

	require.NotNil(t, s.Data)
	require.Len(t, s.Data.Stories, 2)
	assert.Equal(t, "w1", s.Data.Stories[0].Widget.ID)
	require.NotNil(t, s.Settings.PauseOnWidget)
	assert.False(t, *s.Settings.PauseOnWidget)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: x
description: x
mode: stories
fixture: absent.yaml
steps:
  - open: {}
assertions:
  - type: state
    state: playing
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture file not found")
}

const validBody = `
name: x
description: x
mode: stories
data:
  stories: []
steps:
  - open: {}
assertions:
  - type: state
    state: playing
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(validBody))
	require.NoError(t, err)
	assert.NotNil(t, s.Steps[0].Open)
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: validBody + "autoplay: true\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: x\nmode: stories\ndata: {}\nsteps: [{close: true}]\nassertions: [{type: state, state: closed}]\n",
			want: "name is required",
		},
		{
			name: "bad mode",
			yaml: "name: x\ndescription: x\nmode: shorts\ndata: {}\nsteps: [{close: true}]\nassertions: [{type: state, state: closed}]\n",
			want: "mode must be",
		},
		{
			name: "fixture and data",
			yaml: "name: x\ndescription: x\nmode: stories\nfixture: f.yaml\ndata: {}\nsteps: [{close: true}]\nassertions: [{type: state, state: closed}]\n",
			want: "exactly one of fixture and data",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nassertions: [{type: state, state: closed}]\n",
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{close: true}]\n",
			want: "assertions list is required",
		},
		{
			name: "two actions in one step",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{close: true, settle: true}]\nassertions: [{type: state, state: closed}]\n",
			want: "exactly one action is required, found 2",
		},
		{
			name: "bad tap",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{tap: top}]\nassertions: [{type: state, state: closed}]\n",
			want: "tap must be",
		},
		{
			name: "scroll in stories",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{scroll: 10}]\nassertions: [{type: state, state: closed}]\n",
			want: "need reels mode",
		},
		{
			name: "overlay in reels",
			yaml: "name: x\ndescription: x\nmode: reels\ndata: {}\nsteps: [{overlay: {action: open}}]\nassertions: [{type: state, state: closed}]\n",
			want: "overlay steps need stories mode",
		},
		{
			name: "bad resolve",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{resolve: some}]\nassertions: [{type: state, state: closed}]\n",
			want: "resolve must be",
		},
		{
			name: "bad network",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsettings: {network: lossy}\nsteps: [{close: true}]\nassertions: [{type: state, state: closed}]\n",
			want: "settings.network",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{close: true}]\nassertions: [{type: vibes}]\n",
			want: "unknown assertion type",
		},
		{
			name: "trace_count without count",
			yaml: "name: x\ndescription: x\nmode: stories\ndata: {}\nsteps: [{close: true}]\nassertions: [{type: trace_count, kind: closed}]\n",
			want: "count must be non-negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
