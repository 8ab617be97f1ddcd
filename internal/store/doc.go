// Package store provides SQLite-backed storage for the storefront.
//
// Two tables:
//   - products: catalog documents, read back in insertion (seq) order
//   - users: admin accounts with bcrypt password hashes
//
// Catalog wraps the products table as a catalog.Collaborator: every write
// through it is followed by a full snapshot to live subscribers. Writes
// made by other processes are picked up by Catalog.Poll, which watches
// PRAGMA data_version.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
