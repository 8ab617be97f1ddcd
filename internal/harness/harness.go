package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/dispatch"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/testutil"
)

// Harness executes one scenario. The reconciler never runs on its own
// goroutine here: every step is followed by Drain, which makes the trace
// deterministic.
type Harness struct {
	catalog    *testutil.ScriptedCatalog
	identity   *identity.Session
	dispatcher *dispatch.Dispatcher
	reconciler *engine.Reconciler
	result     *Result

	seenOps int
	views   int
}

// Run executes a scenario and returns the result. An error means the
// scenario could not be executed at all; failed expectations are reported
// in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cat := testutil.NewScriptedCatalog(testutil.NewSequentialGenerator("p"))
	cat.DeliverOnSubscribe(scenario.deliverOnSubscribe())
	for _, p := range scenario.Products {
		if err := cat.Upsert(ctx, p); err != nil {
			return nil, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	dir := identity.NewMemoryDirectory(bcrypt.MinCost)
	for _, u := range scenario.Users {
		if _, err := dir.Add(u.Email, u.Password); err != nil {
			return nil, fmt.Errorf("add user %s: %w", u.Email, err)
		}
	}

	h := &Harness{
		catalog:  cat,
		identity: identity.NewSession(dir),
		result:   NewResult(),
	}
	h.dispatcher = dispatch.New(cat, h.identity)
	h.reconciler = engine.New(cat, engine.PublisherFunc(h.onView),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)

	unsubscribe := h.identity.Subscribe(h.reconciler.OnPrincipalChanged)
	defer unsubscribe()
	h.settle(ctx)

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	h.reconciler.Stop()
	h.settle(ctx)

	h.result.Subscriptions = SubscriptionStats{
		Opened:    cat.Opened(),
		Active:    cat.Active(),
		MaxActive: cat.MaxActive(),
	}

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

// settle processes every queued event, then records catalog calls made
// after the last view.
func (h *Harness) settle(ctx context.Context) {
	h.reconciler.Drain(ctx)
	h.flushOps()
}

// flushOps appends catalog subscribe/cancel calls not yet in the trace.
func (h *Harness) flushOps() {
	ops := h.catalog.Log()
	for _, op := range ops[h.seenOps:] {
		h.result.add(TraceEvent{Type: op.Kind, Sub: op.Sub})
	}
	h.seenOps = len(ops)
}

// onView is the reconciler's publisher. It runs on the draining goroutine.
func (h *Harness) onView(v engine.ViewDescription) {
	h.flushOps()
	h.views++
	tv := traceViewOf(v)
	h.result.Final = tv
	h.result.add(TraceEvent{Type: EventView, View: tv})
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	at := h.result.add(TraceEvent{Type: EventStep, Action: step.Action})

	result, stepErr, err := h.invoke(ctx, step)
	if err != nil {
		return err
	}
	h.settle(ctx)

	ev := &h.result.Trace[at]
	ev.Result = result
	if stepErr != nil {
		ev.Error = errorCode(stepErr)
	}

	if step.Expect != nil {
		for _, msg := range h.checkExpect(step.Expect, stepErr) {
			h.result.AddError(fmt.Sprintf("step %d (%s): %s", index, step.Action, msg))
		}
	} else if stepErr != nil {
		h.result.AddError(fmt.Sprintf("step %d (%s): unexpected error %s", index, step.Action, ev.Error))
	}
	return nil
}

// invoke performs the step. stepErr is the command outcome the scenario
// may expect; err aborts the run.
func (h *Harness) invoke(ctx context.Context, step Step) (result string, stepErr, err error) {
	switch step.Action {
	case ActionSignIn:
		return "", h.dispatcher.SignIn(ctx, step.Email, step.Password), nil
	case ActionSignOut:
		return "", h.dispatcher.SignOut(ctx), nil
	case ActionRequestMode:
		mode, err := engine.ParseViewMode(step.Mode)
		if err != nil {
			return "", nil, err
		}
		h.reconciler.RequestMode(mode)
		return "", nil, nil
	case ActionReload:
		h.reconciler.Reload()
		return "", nil, nil
	case ActionDeliver:
		n := h.target(step.Sub)
		var ok bool
		if step.Products == nil {
			ok = h.catalog.DeliverCurrent(n)
		} else {
			ok = h.catalog.Deliver(n, step.Products)
		}
		if !ok {
			return "", nil, fmt.Errorf("no subscription %d", n)
		}
		return "", nil, nil
	case ActionFail:
		n := h.target(step.Sub)
		if !h.catalog.Fail(n, errors.New(step.Error)) {
			return "", nil, fmt.Errorf("no subscription %d", n)
		}
		return "", nil, nil
	case ActionRejectNext:
		h.catalog.RejectNext(errors.New(step.Error))
		return "", nil, nil
	case ActionAddProduct:
		id, stepErr := h.dispatcher.AddProduct(ctx, step.Product.Fields())
		return id, stepErr, nil
	case ActionSetStock:
		return "", h.dispatcher.SetStock(ctx, step.ID, step.InStock), nil
	case ActionToggleStock:
		return "", h.dispatcher.ToggleStock(ctx, step.ID, step.InStock), nil
	case ActionDeleteProduct:
		return "", h.dispatcher.DeleteProduct(ctx, step.ID), nil
	default:
		return "", nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

func (h *Harness) target(sub int) int {
	if sub == 0 {
		return h.catalog.Latest()
	}
	return sub
}

func (h *Harness) checkExpect(e *Expect, stepErr error) []string {
	var msgs []string

	got := ""
	if stepErr != nil {
		got = errorCode(stepErr)
	}
	if got != e.Error {
		msgs = append(msgs, fmt.Sprintf("error: expected %q, got %q", e.Error, got))
	}

	state := h.reconciler.State()
	if e.Mode != "" && string(state.Mode) != e.Mode {
		msgs = append(msgs, fmt.Sprintf("mode: expected %s, got %s", e.Mode, state.Mode))
	}
	if e.Authenticated != nil && state.Authenticated != *e.Authenticated {
		msgs = append(msgs, fmt.Sprintf("authenticated: expected %v, got %v", *e.Authenticated, state.Authenticated))
	}
	if e.Views != nil && h.views != *e.Views {
		msgs = append(msgs, fmt.Sprintf("views: expected %d published, got %d", *e.Views, h.views))
	}

	if e.Status == "" && e.Products == nil {
		return msgs
	}
	last := h.result.Final
	if last == nil {
		return append(msgs, "no view published yet")
	}
	if e.Status != "" && last.Status != e.Status {
		msgs = append(msgs, fmt.Sprintf("status: expected %s, got %s", e.Status, last.Status))
	}
	if e.Products != nil && !slices.Equal(last.Products, e.Products) {
		msgs = append(msgs, fmt.Sprintf("products: expected %v, got %v", e.Products, last.Products))
	}
	return msgs
}

// errorCode names a command error the way scenarios refer to it.
func errorCode(err error) string {
	var authErr *dispatch.AuthError
	switch {
	case errors.As(err, &authErr):
		return string(authErr.Code)
	case errors.Is(err, catalog.ErrInvalidProduct):
		return "invalid_product"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	default:
		return err.Error()
	}
}
