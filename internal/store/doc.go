// Package store persists the list of event definitions as a single blob.
//
// It currently supports:
//   - "file": a JSON array on disk, written atomically
//   - "sqlite": a key/value table in a SQLite database
//   - "memory": process-local, for tests and dry runs
package store
