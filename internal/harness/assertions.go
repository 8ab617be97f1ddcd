package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace keys to help debug the failure.
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
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Key())
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalView:
		return assertFinalView(result, a)
	case AssertSubscriptions:
		return assertSubscriptions(result.Subscriptions, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Key() == a.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: a.Event,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the keys appear in the given order, using the
// first occurrence of each. Other events may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		key := event.Key()
		if _, seen := positions[key]; !seen {
			positions[key] = i + 1
		}
	}

	for _, key := range a.Events {
		if positions[key] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", key),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Key() == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s exactly %d times", a.Event, a.Count),
			Actual:   fmt.Sprintf("found %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalView(result *Result, a Assertion) error {
	v := result.Final
	if v == nil {
		return &AssertionError{Type: AssertFinalView, Expected: "a published view", Actual: "none"}
	}

	var diffs []string
	if a.Mode != "" && v.Mode != a.Mode {
		diffs = append(diffs, fmt.Sprintf("mode %s", v.Mode))
	}
	if a.Status != "" && v.Status != a.Status {
		diffs = append(diffs, fmt.Sprintf("status %s", v.Status))
	}
	if a.Authenticated != nil && v.Authenticated != *a.Authenticated {
		diffs = append(diffs, fmt.Sprintf("authenticated %v", v.Authenticated))
	}
	if a.Products != nil && !slices.Equal(v.Products, a.Products) {
		diffs = append(diffs, fmt.Sprintf("products %v", v.Products))
	}
	if len(diffs) == 0 {
		return nil
	}

	return &AssertionError{
		Type:     AssertFinalView,
		Expected: describeView(a),
		Actual:   strings.Join(diffs, ", "),
	}
}

func describeView(a Assertion) string {
	var parts []string
	if a.Mode != "" {
		parts = append(parts, "mode "+a.Mode)
	}
	if a.Status != "" {
		parts = append(parts, "status "+a.Status)
	}
	if a.Authenticated != nil {
		parts = append(parts, fmt.Sprintf("authenticated %v", *a.Authenticated))
	}
	if a.Products != nil {
		parts = append(parts, fmt.Sprintf("products %v", a.Products))
	}
	return strings.Join(parts, ", ")
}

func assertSubscriptions(stats SubscriptionStats, a Assertion) error {
	check := func(name string, want *int, got int) error {
		if want == nil || *want == got {
			return nil
		}
		return &AssertionError{
			Type:     AssertSubscriptions,
			Expected: fmt.Sprintf("%s %d", name, *want),
			Actual:   fmt.Sprintf("%s %d", name, got),
		}
	}
	if err := check("opened", a.Opened, stats.Opened); err != nil {
		return err
	}
	if err := check("active", a.Active, stats.Active); err != nil {
		return err
	}
	return check("max_active", a.MaxActive, stats.MaxActive)
}
