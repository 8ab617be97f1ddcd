package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/roach88/storefront/internal/catalog"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "PRODUCTS"

// ErrWatchClosed is delivered to a subscription whose watcher stopped
// without being cancelled, e.g. because the connection was lost.
var ErrWatchClosed = errors.New("catalog watch closed")

// Catalog is a catalog.Collaborator backed by a JetStream KV bucket.
type Catalog struct {
	kv  jetstream.KeyValue
	ids catalog.IDGenerator
}

var (
	_ catalog.Collaborator = (*Catalog)(nil)
	_ catalog.Upserter     = (*Catalog)(nil)
	_ catalog.Lister       = (*Catalog)(nil)
)

// Open binds to bucket, creating it if it does not exist. A nil ids
// selects UUIDv7 product ids.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, ids catalog.IDGenerator) (*Catalog, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if ids == nil {
		ids = catalog.UUIDv7Generator{}
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return &Catalog{kv: kv, ids: ids}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Storefront product catalog",
		History:     5,
	})
}

func encode(p catalog.Product) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal product %s: %w", p.ID, err)
	}
	return data, nil
}

func decode(entry jetstream.KeyValueEntry) (catalog.Product, error) {
	var p catalog.Product
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return catalog.Product{}, fmt.Errorf("decode product %s: %w", entry.Key(), err)
	}
	p.ID = entry.Key()
	return p, nil
}

// collection accumulates watcher entries in first-seen order.
type collection struct {
	order []string
	items map[string]catalog.Product
}

func newCollection() *collection {
	return &collection{items: make(map[string]catalog.Product)}
}

// apply folds one entry in. Undecodable values are logged and skipped.
func (c *collection) apply(entry jetstream.KeyValueEntry) {
	key := entry.Key()
	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		if _, ok := c.items[key]; !ok {
			return
		}
		delete(c.items, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	default:
		p, err := decode(entry)
		if err != nil {
			slog.Warn("skipping catalog entry", "key", key, "error", err)
			return
		}
		if _, ok := c.items[key]; !ok {
			c.order = append(c.order, key)
		}
		c.items[key] = p
	}
}

func (c *collection) snapshot() []catalog.Product {
	out := make([]catalog.Product, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// List reads the bucket once in revision order.
func (c *Catalog) List(ctx context.Context) ([]catalog.Product, error) {
	w, err := c.kv.WatchAll(ctx, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer w.Stop()

	coll := newCollection()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case entry, ok := <-w.Updates():
			if !ok {
				return nil, fmt.Errorf("list products: %w", ErrWatchClosed)
			}
			if entry == nil {
				return coll.snapshot(), nil
			}
			coll.apply(entry)
		}
	}
}

type subscription struct {
	cancel context.CancelFunc
	w      jetstream.KeyWatcher

	mu        sync.Mutex
	cancelled bool
}

// Cancel stops the watcher. No callback starts after Cancel returns.
func (s *subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()

	s.cancel()
	if err := s.w.Stop(); err != nil {
		slog.Debug("stop catalog watcher", "error", err)
	}
}

// deliver runs fn unless the subscription was cancelled. Callbacks hold
// s.mu so Cancel waits for an in-flight callback.
func (s *subscription) deliver(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	fn()
	return true
}

// Subscribe opens a bucket watcher. The first snapshot is delivered once
// the watcher has replayed the current contents.
func (c *Catalog) Subscribe(ctx context.Context, onSnapshot catalog.SnapshotFunc, onError catalog.ErrorFunc) (catalog.Subscription, error) {
	// The watch outlives the call; ctx only bounds its creation.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	w, err := c.kv.WatchAll(watchCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch products: %w", err)
	}

	sub := &subscription{cancel: cancel, w: w}
	go sub.run(watchCtx, onSnapshot, onError)
	return sub, nil
}

func (s *subscription) run(ctx context.Context, onSnapshot catalog.SnapshotFunc, onError catalog.ErrorFunc) {
	coll := newCollection()
	replayed := false

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-s.w.Updates():
			if !ok {
				if ctx.Err() == nil {
					s.deliver(func() {
						if onError != nil {
							onError(ErrWatchClosed)
						}
					})
				}
				return
			}
			if entry == nil {
				replayed = true
			} else {
				coll.apply(entry)
			}
			if !replayed {
				continue
			}
			products := coll.snapshot()
			if !s.deliver(func() { onSnapshot(products) }) {
				return
			}
		}
	}
}

func (c *Catalog) Create(ctx context.Context, f catalog.Fields) (string, error) {
	p := f.WithID(c.ids.Generate())
	data, err := encode(p)
	if err != nil {
		return "", err
	}
	if _, err := c.kv.Create(ctx, p.ID, data); err != nil {
		return "", fmt.Errorf("create product %s: %w", p.ID, err)
	}
	return p.ID, nil
}

func (c *Catalog) Update(ctx context.Context, id string, patch catalog.Patch) error {
	entry, err := c.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get product %s: %w", id, err)
	}

	current, err := decode(entry)
	if err != nil {
		return err
	}
	data, err := encode(patch.Apply(current))
	if err != nil {
		return err
	}

	if _, err := c.kv.Update(ctx, id, data, entry.Revision()); err != nil {
		return fmt.Errorf("update product %s: %w", id, err)
	}
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	entry, err := c.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get product %s: %w", id, err)
	}
	if err := c.kv.Delete(ctx, id, jetstream.LastRevision(entry.Revision())); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

func (c *Catalog) Upsert(ctx context.Context, p catalog.Product) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	if _, err := c.kv.Put(ctx, p.ID, data); err != nil {
		return fmt.Errorf("put product %s: %w", p.ID, err)
	}
	return nil
}
