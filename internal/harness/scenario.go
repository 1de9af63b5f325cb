package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gvarikaa/new-DapDip-sub001/internal/fixture"
)

// Scenario drives one viewer or feed session through a list of steps.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Mode is "stories" or "reels".
	Mode string `yaml:"mode"`
	// Fixture is a fixture file, relative to the scenario file.
	Fixture string `yaml:"fixture,omitempty"`
	// Data is an inline fixture, used when Fixture is empty.
	Data       *fixture.Fixture `yaml:"data,omitempty"`
	Settings   Settings         `yaml:"settings,omitempty"`
	Steps      []Step           `yaml:"steps"`
	Assertions []Assertion      `yaml:"assertions"`
	// SessionID fixes the viewing session id. Default "s".
	SessionID string `yaml:"session_id,omitempty"`
}

const (
	ModeStories = "stories"
	ModeReels   = "reels"

	NetworkAuto   = "auto"
	NetworkManual = "manual"
)

// Settings tune the engine for one scenario. Zero values take the engine
// defaults.
type Settings struct {
	Tick            time.Duration `yaml:"tick,omitempty"`
	DefaultDuration time.Duration `yaml:"default_duration,omitempty"`
	Width           float64       `yaml:"width,omitempty"`
	Height          float64       `yaml:"height,omitempty"`
	ItemHeight      float64       `yaml:"item_height,omitempty"`
	Threshold       int           `yaml:"threshold,omitempty"`
	PauseOnWidget   *bool         `yaml:"pause_on_widget,omitempty"`
	Muted           *bool         `yaml:"muted,omitempty"`
	Loop            *bool         `yaml:"loop,omitempty"`
	BlockAutoplay   bool          `yaml:"block_autoplay,omitempty"`
	Network         string        `yaml:"network,omitempty"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	Open    *OpenStep     `yaml:"open,omitempty"`
	Advance time.Duration `yaml:"advance,omitempty"`
	Tap     string        `yaml:"tap,omitempty"`
	Swipe   string        `yaml:"swipe,omitempty"`
	Hold    time.Duration `yaml:"hold,omitempty"`
	Media   *MediaStep    `yaml:"media,omitempty"`
	Overlay *OverlayStep  `yaml:"overlay,omitempty"`
	Scroll  *float64      `yaml:"scroll,omitempty"`
	Settle  bool          `yaml:"settle,omitempty"`
	Resolve string        `yaml:"resolve,omitempty"`
	Fail    *FailStep     `yaml:"fail,omitempty"`
	Mute    *bool         `yaml:"mute,omitempty"`
	Close   bool          `yaml:"close,omitempty"`

	// ExpectError makes the step pass only if it fails with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

type OpenStep struct {
	Author string `yaml:"author,omitempty"`
	Group  int    `yaml:"group,omitempty"`
	Index  int    `yaml:"index,omitempty"`
}

type MediaStep struct {
	// Item defaults to the active item.
	Item string `yaml:"item,omitempty"`
	// Event is loaded, ended, error or unblock.
	Event    string        `yaml:"event"`
	Duration time.Duration `yaml:"duration,omitempty"`
	Message  string        `yaml:"message,omitempty"`
}

type OverlayStep struct {
	// Action is open, composer, submit, dismiss or react.
	Action string `yaml:"action"`
	Value  string `yaml:"value,omitempty"`
}

type FailStep struct {
	Op    string `yaml:"op"`
	Times int    `yaml:"times"`
}

// Assertion checks the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	State string `yaml:"state,omitempty"`
	Group *int   `yaml:"group,omitempty"`
	Index *int   `yaml:"index,omitempty"`
	Item  string `yaml:"item,omitempty"`

	Kind  string   `yaml:"kind,omitempty"`
	Kinds []string `yaml:"kinds,omitempty"`
	Count *int     `yaml:"count,omitempty"`

	Widget string `yaml:"widget,omitempty"`
	Status string `yaml:"status,omitempty"`
}

const (
	AssertState      = "state"
	AssertPosition   = "position"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFetchCount = "fetch_count"
	AssertViewCount  = "view_count"
	AssertResponse   = "response"
)

// LoadScenario reads a scenario file. Unknown fields are rejected and the
// fixture path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Fixture != "" && !filepath.IsAbs(s.Fixture) {
		s.Fixture = filepath.Join(filepath.Dir(path), s.Fixture)
	}
	if s.Fixture != "" {
		if _, err := os.Stat(s.Fixture); err != nil {
			return nil, fmt.Errorf("invalid scenario: fixture file not found: %s", s.Fixture)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Mode {
	case ModeStories, ModeReels:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeStories, ModeReels, s.Mode)
	}
	if (s.Fixture == "") == (s.Data == nil) {
		return fmt.Errorf("exactly one of fixture and data is required")
	}
	switch s.Settings.Network {
	case "", NetworkAuto, NetworkManual:
	default:
		return fmt.Errorf("settings.network must be %q or %q", NetworkAuto, NetworkManual)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(s.Mode, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(mode string, st Step) error {
	set := 0
	for _, ok := range []bool{
		st.Open != nil, st.Advance > 0, st.Tap != "", st.Swipe != "", st.Hold > 0,
		st.Media != nil, st.Overlay != nil, st.Scroll != nil, st.Settle,
		st.Resolve != "", st.Fail != nil, st.Mute != nil, st.Close,
	} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one action is required, found %d", set)
	}

	switch {
	case st.Tap != "":
		if st.Tap != "left" && st.Tap != "middle" && st.Tap != "right" {
			return fmt.Errorf("tap must be left, middle or right")
		}
	case st.Swipe != "":
		if st.Swipe != "up" && st.Swipe != "down" && st.Swipe != "left" && st.Swipe != "right" {
			return fmt.Errorf("swipe must be up, down, left or right")
		}
	case st.Media != nil:
		switch st.Media.Event {
		case "loaded", "ended", "error", "unblock":
		default:
			return fmt.Errorf("unknown media event %q", st.Media.Event)
		}
	case st.Overlay != nil:
		if mode != ModeStories {
			return fmt.Errorf("overlay steps need stories mode")
		}
		switch st.Overlay.Action {
		case "open", "composer", "submit", "dismiss", "react":
		default:
			return fmt.Errorf("unknown overlay action %q", st.Overlay.Action)
		}
	case st.Scroll != nil, st.Settle:
		if mode != ModeReels {
			return fmt.Errorf("scroll and settle need reels mode")
		}
	case st.Resolve != "":
		if st.Resolve != "all" {
			if n, err := strconv.Atoi(st.Resolve); err != nil || n <= 0 {
				return fmt.Errorf("resolve must be \"all\" or a positive count")
			}
		}
	case st.Fail != nil:
		if st.Fail.Op == "" || st.Fail.Times <= 0 {
			return fmt.Errorf("fail needs op and a positive times")
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for state", index)
		}
	case AssertPosition:
		if a.Group == nil && a.Index == nil && a.Item == "" {
			return fmt.Errorf("assertions[%d]: position needs group, index or item", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertFetchCount, AssertViewCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertResponse:
		if a.Widget == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: widget and status are required for response", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
