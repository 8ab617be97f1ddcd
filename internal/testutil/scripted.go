package testutil

import (
	"context"
	"sync"

	"github.com/roach88/storefront/internal/catalog"
)

// ScriptedOp is one entry of the ScriptedCatalog log.
type ScriptedOp struct {
	Kind string `json:"kind" yaml:"kind"` // "subscribe" or "cancel"
	Sub  int    `json:"sub" yaml:"sub"`   // 1-based subscription number in open order
}

// ScriptedCatalog is a catalog.Collaborator driven by the test.
//
// Subscriptions are numbered 1, 2, ... in the order they were opened. The
// test decides when each one receives a snapshot or an error with Deliver
// and Fail, including subscriptions that were already cancelled, which is
// how in-flight deliveries racing a cancel are simulated.
//
// Mutations go to an in-memory catalog; its contents are what
// DeliverCurrent sends.
type ScriptedCatalog struct {
	mu        sync.Mutex
	subs      []*scriptedSub
	log       []ScriptedOp
	active    int
	maxActive int
	reject    error
	autoFirst bool

	store *catalog.Memory
}

type scriptedSub struct {
	owner      *ScriptedCatalog
	n          int
	onSnapshot catalog.SnapshotFunc
	onError    catalog.ErrorFunc
	cancelled  bool
}

var _ catalog.Collaborator = (*ScriptedCatalog)(nil)

// NewScriptedCatalog creates a scripted catalog. ids assigns product ids
// on Create; nil uses a SequentialGenerator.
func NewScriptedCatalog(ids catalog.IDGenerator) *ScriptedCatalog {
	if ids == nil {
		ids = NewSequentialGenerator("p")
	}
	return &ScriptedCatalog{store: catalog.NewMemory(ids)}
}

// DeliverOnSubscribe makes every new subscription receive the current
// contents synchronously inside Subscribe, like catalog.Feed does.
func (c *ScriptedCatalog) DeliverOnSubscribe(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoFirst = on
}

// RejectNext makes the next Subscribe call fail with err.
func (c *ScriptedCatalog) RejectNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reject = err
}

func (c *ScriptedCatalog) Subscribe(ctx context.Context, onSnapshot catalog.SnapshotFunc, onError catalog.ErrorFunc) (catalog.Subscription, error) {
	c.mu.Lock()
	if err := c.reject; err != nil {
		c.reject = nil
		c.mu.Unlock()
		return nil, err
	}

	sub := &scriptedSub{owner: c, n: len(c.subs) + 1, onSnapshot: onSnapshot, onError: onError}
	c.subs = append(c.subs, sub)
	c.log = append(c.log, ScriptedOp{Kind: "subscribe", Sub: sub.n})
	c.active++
	if c.active > c.maxActive {
		c.maxActive = c.active
	}
	auto := c.autoFirst
	c.mu.Unlock()

	if auto {
		products, _ := c.store.List(ctx)
		onSnapshot(products)
	}
	return sub, nil
}

func (s *scriptedSub) Cancel() {
	c := s.owner
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.cancelled {
		return
	}
	s.cancelled = true
	c.active--
	c.log = append(c.log, ScriptedOp{Kind: "cancel", Sub: s.n})
}

func (c *ScriptedCatalog) sub(n int) *scriptedSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.subs) {
		return nil
	}
	return c.subs[n-1]
}

// Deliver sends products to subscription n, cancelled or not. It reports
// whether the subscription exists.
func (c *ScriptedCatalog) Deliver(n int, products []catalog.Product) bool {
	s := c.sub(n)
	if s == nil {
		return false
	}
	s.onSnapshot(catalog.Clone(products))
	return true
}

// DeliverCurrent sends the in-memory contents to subscription n.
func (c *ScriptedCatalog) DeliverCurrent(n int) bool {
	products, _ := c.store.List(context.Background())
	return c.Deliver(n, products)
}

// Fail sends err to subscription n, cancelled or not.
func (c *ScriptedCatalog) Fail(n int, err error) bool {
	s := c.sub(n)
	if s == nil {
		return false
	}
	if s.onError != nil {
		s.onError(err)
	}
	return true
}

// Latest returns the number of the most recently opened subscription, or 0.
func (c *ScriptedCatalog) Latest() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Active returns how many subscriptions are open right now.
func (c *ScriptedCatalog) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// MaxActive returns the highest number of simultaneously open subscriptions.
func (c *ScriptedCatalog) MaxActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxActive
}

// Opened returns how many subscriptions were opened in total.
func (c *ScriptedCatalog) Opened() int {
	return c.Latest()
}

// CancelCount returns how many times Cancel took effect for subscription n.
// Repeated Cancel calls are idempotent, so this is 0 or 1.
func (c *ScriptedCatalog) CancelCount(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, op := range c.log {
		if op.Kind == "cancel" && op.Sub == n {
			count++
		}
	}
	return count
}

// Log returns the subscribe/cancel history in order.
func (c *ScriptedCatalog) Log() []ScriptedOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScriptedOp, len(c.log))
	copy(out, c.log)
	return out
}

func (c *ScriptedCatalog) Create(ctx context.Context, f catalog.Fields) (string, error) {
	return c.store.Create(ctx, f)
}

func (c *ScriptedCatalog) Update(ctx context.Context, id string, patch catalog.Patch) error {
	return c.store.Update(ctx, id, patch)
}

func (c *ScriptedCatalog) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// Upsert writes p to the in-memory contents.
func (c *ScriptedCatalog) Upsert(ctx context.Context, p catalog.Product) error {
	return c.store.Upsert(ctx, p)
}
