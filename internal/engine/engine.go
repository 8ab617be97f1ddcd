package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/identity"
	"github.com/roach88/storefront/internal/metrics"
)

// Reconciler is the single-writer view state machine for one client.
//
// Thread-safety model:
//   - OnPrincipalChanged, RequestMode, Reload: safe from any goroutine
//   - Run or Drain: called from exactly one goroutine at a time
//   - State: safe from any goroutine
//
// INVARIANTS (hold after every processed event):
//   - at most one live catalog subscription
//   - mode == active.mode whenever a subscription record exists
//   - mode is admin_dashboard only while a principal is present
type Reconciler struct {
	catalog   catalog.Collaborator
	publisher Publisher
	clock     *Clock
	queue     *eventQueue
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// Loop-owned state. Only touched by the goroutine running Run/Drain.
	principal     *identity.Principal
	seenPrincipal bool
	mode          ViewMode
	active        *subscriptionRecord
	published     int64
	released      bool

	stateMu sync.Mutex
	state   State
}

// subscriptionRecord is the active catalog subscription.
type subscriptionRecord struct {
	mode     ViewMode
	token    int64
	handle   catalog.Subscription
	snapshot catalog.Snapshot
	received bool
	err      *SubscriptionError
}

func (s *subscriptionRecord) failed() bool {
	return s.err != nil
}

// State is a read-only copy of the reconciler state, refreshed after each
// processed event.
type State struct {
	Mode          ViewMode `json:"mode"`
	Authenticated bool     `json:"authenticated"`
	Token         int64    `json:"token"`
	Subscribed    bool     `json:"subscribed"`
	Failed        bool     `json:"failed"`
	Published     int64    `json:"published"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMetrics records subscription and publish counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithClock supplies the clock subscription tokens are drawn from.
func WithClock(c *Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// New creates a reconciler in the student mode with no subscription. The
// first OnPrincipalChanged opens the first subscription.
func New(c catalog.Collaborator, p Publisher, opts ...Option) *Reconciler {
	r := &Reconciler{
		catalog:   c,
		publisher: p,
		clock:     NewClock(),
		queue:     newEventQueue(),
		mode:      ModeStudentCatalog,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state = State{Mode: r.mode}
	return r
}

// OnPrincipalChanged feeds the identity stream into the reconciler.
// It matches identity.Listener so it can be passed to Session.Subscribe.
func (r *Reconciler) OnPrincipalChanged(p *identity.Principal) {
	if p != nil {
		cp := *p
		p = &cp
	}
	r.enqueue(Event{Type: EventPrincipalChanged, Principal: p})
}

// RequestMode asks for a view mode. Admin without a principal is ignored.
func (r *Reconciler) RequestMode(m ViewMode) {
	r.enqueue(Event{Type: EventModeRequested, Mode: m})
}

// Reload resubscribes the current mode. It is the only way out of an
// unavailable view.
func (r *Reconciler) Reload() {
	r.enqueue(Event{Type: EventReload})
}

func (r *Reconciler) enqueue(e Event) {
	if !r.queue.Enqueue(e) {
		r.logger.Debug("event dropped after stop", "event", e.Type.String())
	}
}

// State returns the state as of the last processed event.
func (r *Reconciler) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop() is called, then cancels the
// active subscription.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Debug("reconciler starting")
	defer r.release()

	for {
		if event, ok := r.queue.TryDequeue(); ok {
			r.process(ctx, event)
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Debug("reconciler stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel closes when the queue is closed, which
			// makes this case fire immediately.
			if r.queue.Closed() && r.queue.Len() == 0 {
				r.logger.Debug("reconciler stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued events on the calling goroutine until the queue
// is empty and returns how many were processed. Must not be used while Run
// is active. If Stop has been called, Drain also releases the active
// subscription.
func (r *Reconciler) Drain(ctx context.Context) int {
	n := 0
	for {
		event, ok := r.queue.TryDequeue()
		if !ok {
			break
		}
		r.process(ctx, event)
		n++
	}
	if r.queue.Closed() {
		r.release()
	}
	return n
}

// Stop closes the event queue. Run returns once it notices; further
// events are dropped.
func (r *Reconciler) Stop() {
	r.queue.Close()
}

// release cancels the active subscription. Called on the loop goroutine.
func (r *Reconciler) release() {
	if r.released {
		return
	}
	r.released = true
	r.cancelActive()
	r.active = nil
	r.syncState()
}

// process routes an event to its handler.
// CRITICAL: Called only from the loop goroutine.
func (r *Reconciler) process(ctx context.Context, e Event) {
	if r.released {
		return
	}

	switch e.Type {
	case EventPrincipalChanged:
		r.handlePrincipal(ctx, e.Principal)
	case EventModeRequested:
		r.handleModeRequest(ctx, e.Mode)
	case EventReload:
		r.handleReload(ctx)
	case EventSnapshot:
		r.handleSnapshot(e.Token, e.Products)
	case EventSubscriptionFailed:
		r.handleFailure(e.Token, e.Err)
	default:
		r.logger.Warn("unknown reconciler event", "type", int(e.Type))
	}

	r.syncState()
}

func (r *Reconciler) handlePrincipal(ctx context.Context, p *identity.Principal) {
	first := !r.seenPrincipal
	r.seenPrincipal = true

	if !first && identity.Same(r.principal, p) {
		// Re-delivery of the current identity leaves the chosen mode alone.
		r.principal = p
		return
	}

	r.principal = p
	target := defaultModeFor(p)
	r.logger.Debug("principal changed", "authenticated", p != nil, "mode", target)

	r.mode = target
	if !r.ensureSubscription(ctx, target) {
		r.republish()
	}
}

func (r *Reconciler) handleModeRequest(ctx context.Context, m ViewMode) {
	if m == ModeAdminDashboard && r.principal == nil {
		r.logger.Debug("admin mode requested without principal; ignored")
		return
	}
	if m != ModeAdminDashboard && m != ModeStudentCatalog {
		r.logger.Warn("unknown view mode requested", "mode", string(m))
		return
	}
	if !r.seenPrincipal {
		// Only student can get here, and the first identity delivery picks
		// the mode to open anyway.
		return
	}

	r.mode = m
	r.ensureSubscription(ctx, m)
}

func (r *Reconciler) handleReload(ctx context.Context) {
	if !r.seenPrincipal {
		return
	}
	r.logger.Debug("reload requested", "mode", r.mode)
	r.cancelActive()
	r.active = nil
	r.openSubscription(ctx, r.mode)
}

// ensureSubscription makes the active subscription serve m. Returns true
// if a new subscription was opened, false if the existing one was kept.
func (r *Reconciler) ensureSubscription(ctx context.Context, m ViewMode) bool {
	if r.active != nil && r.active.mode == m {
		return false
	}

	// Cancel happens-before open.
	r.cancelActive()
	r.active = nil
	r.openSubscription(ctx, m)
	return true
}

func (r *Reconciler) cancelActive() {
	if r.active == nil || r.active.handle == nil {
		return
	}
	r.active.handle.Cancel()
	r.active.handle = nil
	r.metrics.SubscriptionCancelled()
	r.logger.Debug("catalog subscription cancelled", "token", r.active.token, "mode", r.active.mode)
}

func (r *Reconciler) openSubscription(ctx context.Context, m ViewMode) {
	token := r.clock.Next()
	rec := &subscriptionRecord{mode: m, token: token}
	// Recorded before Subscribe: a collaborator may deliver synchronously.
	r.active = rec

	onSnapshot := func(products []catalog.Product) {
		r.enqueue(Event{Type: EventSnapshot, Token: token, Products: products})
	}
	onError := func(err error) {
		r.enqueue(Event{Type: EventSubscriptionFailed, Token: token, Err: err})
	}

	handle, err := r.catalog.Subscribe(ctx, onSnapshot, onError)
	if err != nil {
		rec.err = &SubscriptionError{Code: ErrCodeSubscribeRejected, Mode: m, Token: token, Err: err}
		r.metrics.SubscriptionFailed(string(ErrCodeSubscribeRejected))
		r.logger.Warn("catalog subscribe rejected", "token", token, "mode", m, "error", err)
		r.publish()
		return
	}

	rec.handle = handle
	r.metrics.SubscriptionOpened()
	r.logger.Debug("catalog subscription opened", "token", token, "mode", m)
}

func (r *Reconciler) handleSnapshot(token int64, products []catalog.Product) {
	if r.active == nil || r.active.token != token || r.active.failed() {
		r.metrics.StaleDiscarded("snapshot")
		r.logger.Debug("stale snapshot discarded", "token", token)
		return
	}

	r.active.snapshot = catalog.Partition(products)
	r.active.received = true
	r.metrics.SnapshotApplied()
	r.publish()
}

func (r *Reconciler) handleFailure(token int64, err error) {
	if r.active == nil || r.active.token != token || r.active.failed() {
		r.metrics.StaleDiscarded("error")
		r.logger.Debug("stale subscription error discarded", "token", token, "error", err)
		return
	}
	if err == nil {
		err = errors.New("subscription ended")
	}

	r.cancelActive()
	r.active.err = &SubscriptionError{Code: ErrCodeSubscriptionFailed, Mode: r.active.mode, Token: token, Err: err}
	r.metrics.SubscriptionFailed(string(ErrCodeSubscriptionFailed))
	r.logger.Warn("catalog subscription failed", "token", token, "mode", r.active.mode, "error", err)
	r.publish()
}

// republish re-renders the retained state after a principal or mode change
// that kept the subscription. Nothing is published before the first
// snapshot or failure.
func (r *Reconciler) republish() {
	if r.active == nil || (!r.active.received && !r.active.failed()) {
		return
	}
	r.publish()
}

func (r *Reconciler) publish() {
	v := r.describe()
	r.published++
	v.Seq = r.published
	r.metrics.ViewPublished(string(v.Mode), string(v.Status))
	r.publisher.Publish(v)
}

// describe computes the view from the current state.
func (r *Reconciler) describe() ViewDescription {
	v := ViewDescription{
		Mode:            r.mode,
		Products:        catalog.Snapshot{},
		IsAuthenticated: r.principal != nil,
		Status:          StatusReady,
	}
	if r.principal != nil {
		v.Principal = r.principal.Email
	}
	if r.active == nil {
		return v
	}
	if r.active.failed() {
		v.Status = StatusUnavailable
		v.Error = UnavailableMessage
		return v
	}
	v.Products = catalog.Clone(r.active.snapshot)
	return v
}

func (r *Reconciler) syncState() {
	s := State{
		Mode:          r.mode,
		Authenticated: r.principal != nil,
		Published:     r.published,
	}
	if r.active != nil {
		s.Token = r.active.token
		s.Subscribed = r.active.handle != nil
		s.Failed = r.active.failed()
	}

	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// String is used in debug logs.
func (s State) String() string {
	return fmt.Sprintf("mode=%s auth=%t token=%d subscribed=%t failed=%t", s.Mode, s.Authenticated, s.Token, s.Subscribed, s.Failed)
}
