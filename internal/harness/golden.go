package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatGolden renders a result as golden text: a header, one line per
// transition, then the final state.
func FormatGolden(name string, result *Result) []byte {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(name)
	b.WriteByte('\n')
	for _, ev := range result.Trace {
		b.WriteString(ev.String())
		b.WriteByte('\n')
	}
	b.WriteString(result.Final.String())
	b.WriteByte('\n')
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatGolden(name, result))
}
