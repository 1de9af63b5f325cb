package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/gvarikaa/new-DapDip-sub001/internal/fixture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, ev)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to state outside the trace.
type AssertionContext struct {
	Store   *store.Store
	Backend *fixture.Backend
	Ctx     context.Context
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertState:
		return assertState(result, a)
	case AssertPosition:
		return assertPosition(result, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertFetchCount:
		return assertCount(AssertFetchCount, *a.Count, result.Final.Fetches)
	case AssertViewCount:
		return assertViewCount(result, a, actx)
	case AssertResponse:
		return assertResponse(a, actx)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func assertState(result *Result, a Assertion) error {
	if result.Final.State == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: a.State,
		Actual:   result.Final.State,
		Trace:    result.Trace,
	}
}

func assertPosition(result *Result, a Assertion) error {
	f := result.Final
	ok := (a.Group == nil || *a.Group == f.Group) &&
		(a.Index == nil || *a.Index == f.Index) &&
		(a.Item == "" || a.Item == f.Item)
	if ok {
		return nil
	}
	var want []string
	if a.Group != nil {
		want = append(want, fmt.Sprintf("group=%d", *a.Group))
	}
	if a.Index != nil {
		want = append(want, fmt.Sprintf("index=%d", *a.Index))
	}
	if a.Item != "" {
		want = append(want, "item="+a.Item)
	}
	return &AssertionError{
		Type:     AssertPosition,
		Expected: strings.Join(want, " "),
		Actual:   fmt.Sprintf("group=%d index=%d item=%s", f.Group, f.Index, f.Item),
		Trace:    result.Trace,
	}
}

// assertTraceCount counts events matching kind, optionally narrowed to item.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	pattern := a.Kind
	if a.Item != "" {
		pattern += " " + a.Item
	}
	n := 0
	for _, ev := range trace {
		if ev.Matches(pattern) {
			n++
		}
	}
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d %q events", *a.Count, pattern),
		Actual:   fmt.Sprintf("%d", n),
		Trace:    trace,
	}
}

// assertTraceOrder checks the patterns appear as a subsequence of the trace.
// Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Kinds) && ev.Matches(a.Kinds[next]) {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(a.Kinds, " -> "),
		Actual:   fmt.Sprintf("stopped before %q", a.Kinds[next]),
		Trace:    trace,
	}
}

func assertCount(kind string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

func assertViewCount(result *Result, a Assertion, actx *AssertionContext) error {
	if a.Item == "" {
		return assertCount(AssertViewCount, *a.Count, result.Final.Views)
	}
	if actx == nil || actx.Backend == nil {
		return fmt.Errorf("view_count for %s: no backend", a.Item)
	}
	n := 0
	for _, v := range actx.Backend.Views() {
		if v.Final() && v.ItemID == a.Item {
			n++
		}
	}
	return assertCount(AssertViewCount, *a.Count, n)
}

func assertResponse(a Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("response %s: no store", a.Widget)
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, status, ok, err := actx.Store.Response(ctx, a.Widget)
	if err != nil {
		return fmt.Errorf("response %s: %w", a.Widget, err)
	}
	actual := string(status)
	if !ok {
		actual = "none"
	}
	if actual == a.Status {
		return nil
	}
	return &AssertionError{
		Type:     AssertResponse,
		Expected: fmt.Sprintf("%s %s", a.Widget, a.Status),
		Actual:   actual,
	}
}
