// Package natskv implements the catalog collaborator on a NATS JetStream
// key-value bucket.
//
// Each product is one key holding the product JSON document. A
// subscription is a WatchAll watcher: the initial replay is collected until
// the end-of-replay marker, then every subsequent put or delete produces a
// full snapshot. Delivery order is the order in which keys first appeared
// on the watcher.
package natskv
