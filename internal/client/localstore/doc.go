// Package localstore provides the durable storage primitive shared by the
// client-side engine components.
//
// # Overview
//
// The package defines a Store interface combining a string key/value table
// with a blob area for opaque byte payloads. Record persistence, blob cache
// metadata, calendar sync bookkeeping and reminder schedules all sit on top
// of this one primitive. A SQLite-backed implementation (SQLiteStore) keeps
// the key/value table in a local database file and blob payloads as files
// next to it; MemoryStore is an in-process implementation for tests.
//
// # Atomicity
//
// One SetString call is one SQLite statement: a crash mid-write leaves the
// previous value intact, never a torn one. Blob writes go through a
// temporary file and rename for the same reason.
//
// # Concurrency
//
// SQLiteStore is safe for concurrent use; the database handle serializes
// writers and the busy timeout absorbs short contention.
//
// Key Types
//
//   - Store: the interface used by higher-level components
//   - SQLiteStore: SQLite + filesystem implementation
//   - MemoryStore: map-backed implementation for tests
//
// Typical Usage
//
//	st, err := localstore.Open(ctx, "flocksync.db", "blobs")
//	_ = st.SetString(ctx, "record/"+id, payload)
//	v, ok, _ := st.GetString(ctx, "record/"+id)
//	keys, _ := st.Keys(ctx, "record/")
package localstore
