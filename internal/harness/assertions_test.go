package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventSubscribe, Sub: 1},
		{Seq: 2, Type: EventView, View: &TraceView{Mode: "student_catalog", Status: "ready", Products: []string{}}},
		{Seq: 3, Type: EventStep, Action: "sign_in"},
		{Seq: 4, Type: EventCancel, Sub: 1},
		{Seq: 5, Type: EventSubscribe, Sub: 2},
		{Seq: 6, Type: EventView, View: &TraceView{Mode: "admin_dashboard", Status: "ready", Authenticated: true, Products: []string{"p-1"}}},
	}
}

func TestTraceEvent_Key(t *testing.T) {
	keys := make([]string, 0, 6)
	for _, e := range sampleTrace() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []string{
		"subscribe:1",
		"view:student_catalog:ready",
		"step:sign_in",
		"cancel:1",
		"subscribe:2",
		"view:admin_dashboard:ready",
	}, keys)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"cancel:1", "subscribe:2"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []string{"subscribe:1", "view:admin_dashboard:ready"}}))

	err := assertTraceOrder(trace, Assertion{Events: []string{"subscribe:2", "cancel:1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe:2 (pos 5) should be before cancel:1 (pos 4)")

	err = assertTraceOrder(trace, Assertion{Events: []string{"cancel:2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing event: cancel:2")
}

func TestAssertTraceContainsAndCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: "step:sign_in"}))
	assert.Error(t, assertTraceContains(trace, Assertion{Event: "step:sign_out"}))

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "cancel:1", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: "cancel:2", Count: 0}))
	err := assertTraceCount(trace, Assertion{Event: "cancel:1", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 1 times")
}

func TestAssertFinalView(t *testing.T) {
	result := NewResult()
	assert.Error(t, assertFinalView(result, Assertion{Mode: "student_catalog"}))

	result.Final = &TraceView{Mode: "admin_dashboard", Status: "ready", Authenticated: true, Products: []string{"p-1"}}
	assert.NoError(t, assertFinalView(result, Assertion{Mode: "admin_dashboard", Products: []string{"p-1"}}))

	err := assertFinalView(result, Assertion{Mode: "student_catalog", Authenticated: boolPtr(false)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode admin_dashboard, authenticated true")
}

func TestAssertSubscriptions(t *testing.T) {
	stats := SubscriptionStats{Opened: 3, Active: 0, MaxActive: 1}
	assert.NoError(t, assertSubscriptions(stats, Assertion{Opened: intPtr(3), MaxActive: intPtr(1)}))

	err := assertSubscriptions(stats, Assertion{MaxActive: intPtr(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_active 1")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: "cancel:1"},
		{Type: AssertTraceContains, Event: "cancel:9"},
		{Type: AssertTraceCount, Event: "subscribe:2", Count: 3},
	})
	assert.Len(t, errs, 2)
}
