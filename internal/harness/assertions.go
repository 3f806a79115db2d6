package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
)

// AssertionError is returned when an assertion fails.
// It includes the call trace to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Calls    []Call
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nCalls:\n")
		for _, c := range e.Calls {
			fmt.Fprintf(&buf, "  %s\n", c)
		}
	}
	return buf.String()
}

var reportCounters = map[string]func(*engine.Report) int{
	"items":     func(r *engine.Report) int { return len(r.Items) },
	"steps":     func(r *engine.Report) int { return r.Steps },
	"max_steps": func(r *engine.Report) int { return r.MaxSteps },
	"created":   func(r *engine.Report) int { return r.Created },
	"fetched":   func(r *engine.Report) int { return r.Fetched },
	"updated":   func(r *engine.Report) int { return r.Updated },
	"planned":   func(r *engine.Report) int { return r.Planned },
	"synced":    func(r *engine.Report) int { return r.Synced() },
	"failed":    func(r *engine.Report) int { return r.Failed() },
}

func checkAssertions(r *Result, assertions []Assertion) {
	for _, a := range assertions {
		if err := checkAssertion(r, a); err != nil {
			r.AddError(err.Error())
		}
	}
}

func checkAssertion(r *Result, a Assertion) error {
	switch a.Type {
	case AssertErrorCode:
		return assertErrorCode(r, a)
	case AssertItemStatus:
		return assertItemStatus(r, a)
	case AssertReport:
		return assertReport(r, a)
	case AssertCallCount:
		return assertCallCount(r, a)
	case AssertCallOrder:
		return assertCallOrder(r, a)
	case AssertFinalState:
		return assertFinalState(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertErrorCode(r *Result, a Assertion) error {
	got := string(engine.ErrorCode(r.Err))
	if r.Err != nil && got == "" {
		got = "untyped error: " + r.Err.Error()
	}
	if got == a.Code {
		return nil
	}
	return &AssertionError{
		Type:     AssertErrorCode,
		Expected: orNone(a.Code),
		Actual:   orNone(got),
		Calls:    r.Calls,
	}
}

func assertItemStatus(r *Result, a Assertion) error {
	it, ok := r.Item(a.Item)
	if !ok {
		return &AssertionError{
			Type:     AssertItemStatus,
			Expected: fmt.Sprintf("item %s with status %s", a.Item, a.Status),
			Actual:   "item not in report",
		}
	}
	if it.Status.String() == a.Status {
		return nil
	}
	actual := it.Status.String()
	if it.Error != "" {
		actual += " (" + it.Error + ")"
	}
	return &AssertionError{
		Type:     AssertItemStatus,
		Expected: fmt.Sprintf("item %s with status %s", a.Item, a.Status),
		Actual:   actual,
		Calls:    r.Calls,
	}
}

func assertReport(r *Result, a Assertion) error {
	if r.Report == nil {
		return &AssertionError{Type: AssertReport, Expected: "a report", Actual: "no report"}
	}
	var mismatches []string
	for _, key := range slices.Sorted(maps.Keys(a.Expect)) {
		counter, ok := reportCounters[key]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("unknown counter %s", key))
			continue
		}
		got := counter(r.Report)
		if fmt.Sprint(a.Expect[key]) != fmt.Sprint(got) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%d (want %v)", key, got, a.Expect[key]))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertReport,
		Expected: fmt.Sprintf("%v", a.Expect),
		Actual:   strings.Join(mismatches, ", "),
	}
}

func assertCallCount(r *Result, a Assertion) error {
	n := 0
	for _, c := range r.Calls {
		if c.Provider == a.Provider && string(c.Op) == a.Op {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallCount,
		Expected: fmt.Sprintf("%s %s called %d times", a.Provider, a.Op, a.Count),
		Actual:   fmt.Sprintf("called %d times", n),
		Calls:    r.Calls,
	}
}

// assertCallOrder checks that the calls appear in order. Other calls may
// occur in between.
func assertCallOrder(r *Result, a Assertion) error {
	next := 0
	for _, c := range r.Calls {
		if next < len(a.Calls) && c.matches(a.Calls[next]) {
			next++
		}
	}
	if next == len(a.Calls) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCallOrder,
		Expected: strings.Join(a.Calls, " -> "),
		Actual:   fmt.Sprintf("no call matching %q after %d matched", a.Calls[next], next),
		Calls:    r.Calls,
	}
}

func assertFinalState(r *Result, a Assertion) error {
	rec, ok := r.Record(a.Provider, a.ItemType, a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s %s to exist", a.Provider, a.ItemType, a.ID),
			Actual:   "record not found",
		}
	}
	var mismatches []string
	for _, path := range slices.Sorted(maps.Keys(a.Expect)) {
		want := a.Expect[path]
		if provider.Matches(rec, map[string]any{path: want}) {
			continue
		}
		got, found := mapping.Get(rec, path)
		if !found {
			mismatches = append(mismatches, fmt.Sprintf("%s missing (want %v)", path, want))
			continue
		}
		mismatches = append(mismatches, fmt.Sprintf("%s=%v (want %v)", path, got, want))
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s %s %s matching %v", a.Provider, a.ItemType, a.ID, a.Expect),
		Actual:   strings.Join(mismatches, ", "),
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
