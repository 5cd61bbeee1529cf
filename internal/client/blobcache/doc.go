// Package blobcache keeps downloaded event artwork in a size-bounded local
// cache.
//
// # Overview
//
// Each cached image is one entry keyed by (owner, variant): the full
// rendition and its thumbnail are cached independently, because list views
// read thumbnails constantly while the full image may never be opened.
// Bytes live in the blob area of the durable store; a small metadata row
// per entry lives in the KV table and drives eviction.
//
// # Eviction
//
// The cache never exceeds its configured bound: after every download the
// least recently accessed entries are evicted until the total size fits.
// Ties are broken by the earliest download. EvictFor drops both variants of
// one owner, used when the member cancels an event registration.
//
// # Coalescing
//
// Concurrent GetOrFetch calls for the same (owner, variant) share one
// download: late callers wait for the first one's result instead of
// fetching the same bytes again.
package blobcache
