package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each scenario file under testdata/scenarios has a golden trace of the
// same name.
func TestGolden_Scenarios(t *testing.T) {
	for _, name := range []string{
		"auto_advance",
		"tap_back",
		"widget_pause",
		"reel_pagination",
		"video_ended",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

// Two runs of the same scenario produce byte-identical golden text.
func TestGolden_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "widget_pause.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(FormatGolden("x", first)), string(FormatGolden("x", second)))
}

func TestFormatGolden(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, TraceEvent{
		Seq: 1, AtMS: 250, Kind: "paused", Item: "a1", Position: "0/2", Gen: 4,
		Cause: "gesture", Reason: "user", Progress: 0.125,
	})
	result.Final = Final{State: "paused(user)", Item: "a1", Index: 2, Overlay: "widget", Fetches: 1}

	want := "# demo\n" +
		"t=250 paused a1 0/2 gen=4 cause=gesture reason=user progress=0.12\n" +
		"final state=paused(user) item=a1 position=0/2 overlay=widget fetches=1 views=0\n"
	assert.Equal(t, want, string(FormatGolden("demo", result)))
}
