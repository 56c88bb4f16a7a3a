// Package tokenstore owns the persisted credential pair of an authpipe client.
//
// # Store
//
// [Store] keeps the current [TokenPair] in memory and persists it through a
// [KeyValue] backend under two string keys. Writes ([Store.Set], [Store.Clear])
// are serialized and swap the in-memory snapshot atomically, so [Store.Get]
// never observes a half-written pair. After persisting, a write notifies the
// attached [Notifier] synchronously before returning.
//
// # Backends
//
//   - [MemoryKV]: process-local, non-expiring (go-cache).
//   - [FileKV]: JSON document on disk, mode 0600, atomic rename.
//   - [RedisKV]: Redis keys under a prefix, batched in MULTI/EXEC.
//   - [SQLiteKV]: single-table SQLite database, batched in a transaction.
//
// # What this package must NOT do
//
//   - Import authpipe, session, refresh, or jwt (no upward imports).
//   - Interpret token contents.
//   - Log token values.
package tokenstore
