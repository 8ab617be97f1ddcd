package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/storefront/internal/catalog"
)

// Catalog exposes the products table as a live catalog collaborator.
type Catalog struct {
	store *Store
	ids   catalog.IDGenerator
	feed  *catalog.Feed
}

var (
	_ catalog.Collaborator = (*Catalog)(nil)
	_ catalog.Upserter     = (*Catalog)(nil)
	_ catalog.Lister       = (*Catalog)(nil)
)

// NewCatalog wraps s. A nil ids selects UUIDv7 product ids.
func NewCatalog(s *Store, ids catalog.IDGenerator) *Catalog {
	if ids == nil {
		ids = catalog.UUIDv7Generator{}
	}
	return &Catalog{
		store: s,
		ids:   ids,
		feed:  catalog.NewFeed(s.ListProducts),
	}
}

func (c *Catalog) List(ctx context.Context) ([]catalog.Product, error) {
	return c.store.ListProducts(ctx)
}

func (c *Catalog) Subscribe(ctx context.Context, onSnapshot catalog.SnapshotFunc, onError catalog.ErrorFunc) (catalog.Subscription, error) {
	return c.feed.Subscribe(ctx, onSnapshot, onError)
}

func (c *Catalog) Create(ctx context.Context, f catalog.Fields) (string, error) {
	id := c.ids.Generate()
	if err := c.store.InsertProduct(ctx, f.WithID(id)); err != nil {
		return "", err
	}
	c.feed.Notify(ctx)
	return id, nil
}

func (c *Catalog) Update(ctx context.Context, id string, patch catalog.Patch) error {
	if err := c.store.UpdateProduct(ctx, id, patch); err != nil {
		return err
	}
	c.feed.Notify(ctx)
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.feed.Notify(ctx)
	return nil
}

func (c *Catalog) Upsert(ctx context.Context, p catalog.Product) error {
	if err := c.store.UpsertProduct(ctx, p); err != nil {
		return err
	}
	c.feed.Notify(ctx)
	return nil
}

// Poll re-delivers the collection whenever another process commits to the
// database. Blocks until ctx is done.
func (c *Catalog) Poll(ctx context.Context, interval time.Duration) error {
	last, err := c.store.DataVersion(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		v, err := c.store.DataVersion(ctx)
		if err != nil {
			slog.Warn("catalog poll failed", "error", err)
			continue
		}
		if v != last {
			last = v
			slog.Debug("external catalog change", "data_version", v)
			c.feed.Notify(ctx)
		}
	}
}

// Close terminates all subscriptions with err.
func (c *Catalog) Close(err error) {
	c.feed.Fail(err)
}
