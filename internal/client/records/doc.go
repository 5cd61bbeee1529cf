// Package records persists sync-aware member records on top of the local
// durable store. Records are kept as JSON under "record/<id>" keys; the
// Synced flag drives which of them the reconciler uploads.
package records
