package harness

import (
	"fmt"

	"github.com/roach88/storefront/internal/engine"
)

// Trace event types.
const (
	EventStep      = "step"
	EventSubscribe = "subscribe"
	EventCancel    = "cancel"
	EventView      = "view"
)

// TraceView is the part of a published view that scenarios compare.
type TraceView struct {
	Mode          string   `json:"mode"`
	Status        string   `json:"status"`
	Authenticated bool     `json:"authenticated"`
	Principal     string   `json:"principal,omitempty"`
	Products      []string `json:"products"`
	Error         string   `json:"error,omitempty"`
}

func traceViewOf(v engine.ViewDescription) *TraceView {
	ids := make([]string, len(v.Products))
	for i, p := range v.Products {
		ids[i] = p.ID
	}
	return &TraceView{
		Mode:          string(v.Mode),
		Status:        string(v.Status),
		Authenticated: v.IsAuthenticated,
		Principal:     v.Principal,
		Products:      ids,
		Error:         v.Error,
	}
}

// TraceEvent is one entry of the scenario trace.
type TraceEvent struct {
	Seq    int64      `json:"seq"`
	Type   string     `json:"type"`
	Action string     `json:"action,omitempty"`
	Sub    int        `json:"sub,omitempty"`
	Error  string     `json:"error,omitempty"`
	Result string     `json:"result,omitempty"`
	View   *TraceView `json:"view,omitempty"`
}

// Key names the event for trace assertions.
func (e TraceEvent) Key() string {
	switch e.Type {
	case EventStep:
		return "step:" + e.Action
	case EventSubscribe, EventCancel:
		return fmt.Sprintf("%s:%d", e.Type, e.Sub)
	case EventView:
		if e.View == nil {
			return EventView
		}
		return fmt.Sprintf("view:%s:%s", e.View.Mode, e.View.Status)
	default:
		return e.Type
	}
}

// SubscriptionStats summarizes catalog subscription usage.
type SubscriptionStats struct {
	Opened    int `json:"opened"`
	Active    int `json:"active"`
	MaxActive int `json:"max_active"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final is the last published view, if any.
	Final *TraceView `json:"final,omitempty"`

	// Subscriptions is measured after the reconciler released its
	// subscription at the end of the run, except MaxActive.
	Subscriptions SubscriptionStats `json:"subscriptions"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) int {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
	return len(r.Trace) - 1
}
