// Package syncer reconciles device-authored records with the remote store.
//
// # Overview
//
// The Reconciler owns the push/pull cycle of the offline-first engine. New
// records are written locally first; PushUnsynced uploads whatever still
// carries Synced=false, marking each record individually as soon as its
// upload lands. Pull fetches the congregation's visible feed, and
// MergedView folds both sides into the single list a UI renders.
//
// # Concurrency
//
// One push cycle runs at a time per Reconciler: a trigger that arrives
// while a cycle is in flight is dropped with common.ErrSyncInProgress,
// never queued. Records inside a cycle upload through a bounded worker
// pool; one record's failure does not stop the rest. Auto-sync runs as a
// goroutine owned by the instance and stops through its cancel function.
package syncer
