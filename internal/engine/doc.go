// Package engine implements the view/session reconciler.
//
// The reconciler decides what a client sees from two independent
// asynchronous inputs: the identity stream (who is signed in) and the live
// catalog stream (what products exist). Its output is a ViewDescription
// handed to a Publisher each time the view changes.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every input is turned into an Event and enqueued on a FIFO queue. One
// goroutine (Run, or Drain in tests) dequeues and applies events one at a
// time, so all reconciler state is owned by that goroutine. Collaborator
// callbacks never touch state directly; they only enqueue.
//
// Subscription Tokens:
// Each catalog subscription is stamped with a fresh seq from the logical
// Clock. Snapshot and error events carry the token of the subscription
// that produced them. An event whose token is not the active one is stale
// and is discarded. Staleness is decided by token, never by arrival order.
//
// CRITICAL PATTERNS:
//
// At most one active subscription:
// The old subscription is cancelled before the new one is opened, on the
// loop goroutine, so two subscriptions are never live at once.
//
// Mode follows the active subscription:
// After every event the current mode equals the mode of the active
// subscription, and admin_dashboard is only reachable with a principal.
package engine
