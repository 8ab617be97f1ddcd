// Package catalog defines the product catalog domain and the contract of the
// catalog collaborator: a live, replaceable-whole collection of products plus
// create / field-update / delete mutations keyed by document id.
//
// Snapshots are delivered whole. Consumers never merge deltas; each delivery
// replaces the previous one. Display order is a stable partition of the
// delivery order (in-stock first), see Partition.
//
// Feed provides the fan-out used by every in-process backend: it reloads the
// collection after each mutation and delivers it to all live subscribers in
// emission order. Memory is the in-memory backend built on it.
package catalog
