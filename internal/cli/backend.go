package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/config"
	"github.com/roach88/storefront/internal/natskv"
	"github.com/roach88/storefront/internal/store"
)

// catalogBackend is what every configured backend offers.
type catalogBackend interface {
	catalog.Collaborator
	catalog.Upserter
	catalog.Lister
}

var (
	_ catalogBackend = (*catalog.Memory)(nil)
	_ catalogBackend = (*store.Catalog)(nil)
	_ catalogBackend = (*natskv.Catalog)(nil)
)

// backend bundles the catalog collaborator with the user store. Users
// always live in SQLite; the catalog follows backend.kind.
type backend struct {
	catalog catalogBackend
	users   *store.Store

	// sqlCatalog is set for the sqlite backend so serve can poll it.
	sqlCatalog *store.Catalog

	closers []func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	b := &backend{users: st}
	b.closers = append(b.closers, func() {
		if err := st.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	})

	ids := catalog.UUIDv7Generator{}
	switch cfg.Backend.Kind {
	case config.BackendSQLite:
		b.sqlCatalog = store.NewCatalog(st, ids)
		b.catalog = b.sqlCatalog
		b.closers = append(b.closers, func() { b.sqlCatalog.Close(errors.New("catalog closed")) })
	case config.BackendMemory:
		b.catalog = catalog.NewMemory(ids)
	case config.BackendNATS:
		if err := b.openNATS(ctx, cfg.NATS, ids); err != nil {
			b.Close()
			return nil, err
		}
	default:
		b.Close()
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}

	slog.Debug("backend ready", "kind", cfg.Backend.Kind, "store", cfg.Store.Path)
	return b, nil
}

func (b *backend) openNATS(ctx context.Context, nc config.NATSConfig, ids catalog.IDGenerator) error {
	url := nc.URL
	if nc.Embedded {
		ns, err := natskv.StartEmbedded(natskv.EmbeddedOptions{StoreDir: nc.StoreDir})
		if err != nil {
			return err
		}
		b.closers = append(b.closers, ns.Shutdown)
		url = ns.ClientURL()
		slog.Info("embedded NATS started", "url", url)
	}

	conn, js, err := natskv.Connect(url)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, conn.Close)

	kv, err := natskv.Open(ctx, js, nc.Bucket, ids)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", nc.Bucket, err)
	}
	b.catalog = kv
	return nil
}

// Close releases resources in reverse order of acquisition.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
