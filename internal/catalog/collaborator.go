package catalog

import "context"

// SnapshotFunc receives the full current contents of the collection.
type SnapshotFunc func(products []Product)

// ErrorFunc receives the terminal error of a subscription. No further
// snapshots follow it.
type ErrorFunc func(err error)

// Subscription is a live collection stream. Cancel is idempotent and
// guarantees no callback starts after it returns.
type Subscription interface {
	Cancel()
}

// Collaborator is the catalog backend contract.
//
// Subscribe must deliver the current contents once before returning or
// shortly after, then again on every change. Callbacks for one
// subscription are never invoked concurrently and arrive in emission
// order.
type Collaborator interface {
	Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error)
	Create(ctx context.Context, f Fields) (string, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// Upserter is implemented by backends that accept whole documents with a
// caller-chosen id. Used by seeding, not by the dispatcher.
type Upserter interface {
	Upsert(ctx context.Context, p Product) error
}

// Lister is implemented by backends that can read the collection once
// without opening a stream.
type Lister interface {
	List(ctx context.Context) ([]Product, error)
}
