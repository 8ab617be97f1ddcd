package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Loader reads the full current collection in delivery order.
type Loader func(ctx context.Context) ([]Product, error)

// Feed fans a collection out to live subscribers.
//
// Every delivery (initial and after Notify) happens while holding the feed
// lock, which gives two guarantees:
//   - subscribers see snapshots in the order Notify calls completed
//   - once Cancel returns, that subscriber receives nothing further
//
// Callbacks must therefore not call back into the feed (Subscribe, Notify or
// Cancel on the same feed) or they will deadlock. Enqueueing into another
// goroutine's queue is the intended use.
type Feed struct {
	mu   sync.Mutex
	load Loader
	subs map[uint64]*feedSubscription
	next uint64
}

type feedSubscription struct {
	id         uint64
	feed       *Feed
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	once       sync.Once
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *feedSubscription) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs, s.id)
	})
}

// NewFeed creates a feed that reads the collection with load.
func NewFeed(load Loader) *Feed {
	return &Feed{
		load: load,
		subs: make(map[uint64]*feedSubscription),
	}
}

// Subscribe registers a subscriber and delivers the current collection to
// it before returning.
func (f *Feed) Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	products, err := f.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	f.next++
	sub := &feedSubscription{
		id:         f.next,
		feed:       f,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	f.subs[sub.id] = sub

	onSnapshot(Clone(products))
	return sub, nil
}

// Notify reloads the collection and delivers it to every subscriber. If the
// reload fails, every subscriber receives the error and is dropped.
func (f *Feed) Notify(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.subs) == 0 {
		return
	}

	products, err := f.load(ctx)
	ids := slices.Sorted(maps.Keys(f.subs))
	if err != nil {
		slog.Warn("catalog feed reload failed", "subscribers", len(ids), "error", err)
		for _, id := range ids {
			sub := f.subs[id]
			delete(f.subs, id)
			if sub.onError != nil {
				sub.onError(err)
			}
		}
		return
	}

	for _, id := range ids {
		f.subs[id].onSnapshot(Clone(products))
	}
}

// Fail terminates every subscription with err. Used on backend shutdown.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(f.subs)) {
		sub := f.subs[id]
		delete(f.subs, id)
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

// Len returns the number of live subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
