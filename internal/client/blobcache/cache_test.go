package blobcache

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, maxBytes int64) (*Cache, *localstore.MemoryStore) {
	t.Helper()
	kv := localstore.NewMemoryStore()
	c := New(kv, maxBytes, logging.NewNop())
	c.retryBase = time.Millisecond
	return c, kv
}

// stubClock pins nowMillis to a test-controlled value.
func stubClock(t *testing.T, start int64) *int64 {
	t.Helper()
	now := start
	orig := nowMillis
	nowMillis = func() int64 { return now }
	t.Cleanup(func() { nowMillis = orig })
	return &now
}

func newBlobServer(t *testing.T, payload []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCache_MissDownloadsThenHitServesLocally(t *testing.T) {
	c, _ := setupCache(t, 1<<20)
	ctx := context.Background()
	srv, hits := newBlobServer(t, []byte("artwork"))

	got, err := c.GetOrFetch(ctx, "event-1", srv.URL, models.BlobFull)
	require.NoError(t, err)
	assert.Equal(t, []byte("artwork"), got)

	again, err := c.GetOrFetch(ctx, "event-1", srv.URL, models.BlobFull)
	require.NoError(t, err)
	assert.Equal(t, []byte("artwork"), again)
	assert.Equal(t, int32(1), hits.Load(), "a hit must not contact the server")
}

func TestCache_VariantsAreIndependentEntries(t *testing.T) {
	c, _ := setupCache(t, 1<<20)
	ctx := context.Background()
	full, _ := newBlobServer(t, bytes.Repeat([]byte("F"), 8))
	thumb, _ := newBlobServer(t, bytes.Repeat([]byte("t"), 2))

	gotFull, err := c.GetOrFetch(ctx, "event-1", full.URL, models.BlobFull)
	require.NoError(t, err)
	gotThumb, err := c.GetOrFetch(ctx, "event-1", thumb.URL, models.BlobThumb)
	require.NoError(t, err)

	assert.Len(t, gotFull, 8)
	assert.Len(t, gotThumb, 2)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Count: 2, TotalBytes: 10}, stats)
}

// Bound 10, three 4-byte images downloaded at t=1,2,3: the third download
// pushes the total to 12, so the oldest entry goes and 8 stays cached.
func TestCache_DownloadEnforcesBoundEvictingOldest(t *testing.T) {
	c, kv := setupCache(t, 10)
	ctx := context.Background()
	clock := stubClock(t, 1)
	srv, _ := newBlobServer(t, []byte("xxxx"))

	_, err := c.GetOrFetch(ctx, "e1", srv.URL, models.BlobFull)
	require.NoError(t, err)
	*clock = 2
	_, err = c.GetOrFetch(ctx, "e2", srv.URL, models.BlobFull)
	require.NoError(t, err)
	*clock = 3
	_, err = c.GetOrFetch(ctx, "e3", srv.URL, models.BlobFull)
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Count: 2, TotalBytes: 8}, stats)

	_, ok, err := kv.GetString(ctx, metaKey("e1", models.BlobFull))
	require.NoError(t, err)
	assert.False(t, ok, "e1 was the least recently accessed entry")
	_, err = kv.ReadBlob(ctx, blobName("e1", models.BlobFull))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCache_HitRefreshesAccessOrder(t *testing.T) {
	c, kv := setupCache(t, 12)
	ctx := context.Background()
	clock := stubClock(t, 1)
	srv, _ := newBlobServer(t, []byte("xxxx"))

	_, err := c.GetOrFetch(ctx, "a", srv.URL, models.BlobFull)
	require.NoError(t, err)
	*clock = 2
	_, err = c.GetOrFetch(ctx, "b", srv.URL, models.BlobFull)
	require.NoError(t, err)
	*clock = 3
	_, err = c.GetOrFetch(ctx, "c", srv.URL, models.BlobFull)
	require.NoError(t, err)

	// Reading a again makes b the least recently accessed entry.
	*clock = 4
	_, err = c.GetOrFetch(ctx, "a", srv.URL, models.BlobFull)
	require.NoError(t, err)

	*clock = 5
	_, err = c.GetOrFetch(ctx, "d", srv.URL, models.BlobFull)
	require.NoError(t, err)

	_, ok, err := kv.GetString(ctx, metaKey("b", models.BlobFull))
	require.NoError(t, err)
	assert.False(t, ok, "b must be evicted, not a")

	for _, owner := range []string{"a", "c", "d"} {
		_, ok, err := kv.GetString(ctx, metaKey(owner, models.BlobFull))
		require.NoError(t, err)
		assert.True(t, ok, "%s must survive", owner)
	}
}

func TestCache_EvictionTieBreaksOnEarliestDownload(t *testing.T) {
	c, kv := setupCache(t, 8)
	ctx := context.Background()
	clock := stubClock(t, 1)
	srv, _ := newBlobServer(t, []byte("xxxx"))

	_, err := c.GetOrFetch(ctx, "a", srv.URL, models.BlobFull)
	require.NoError(t, err)
	*clock = 2
	_, err = c.GetOrFetch(ctx, "b", srv.URL, models.BlobFull)
	require.NoError(t, err)

	// Equal last access for a and b; a was downloaded first.
	*clock = 5
	_, err = c.GetOrFetch(ctx, "a", srv.URL, models.BlobFull)
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, "b", srv.URL, models.BlobFull)
	require.NoError(t, err)

	*clock = 6
	_, err = c.GetOrFetch(ctx, "c", srv.URL, models.BlobFull)
	require.NoError(t, err)

	_, ok, err := kv.GetString(ctx, metaKey("a", models.BlobFull))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = kv.GetString(ctx, metaKey("b", models.BlobFull))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_EnforceBoundNoopUnderLimit(t *testing.T) {
	c, _ := setupCache(t, 100)
	ctx := context.Background()
	srv, _ := newBlobServer(t, []byte("xxxx"))

	_, err := c.GetOrFetch(ctx, "a", srv.URL, models.BlobFull)
	require.NoError(t, err)

	require.NoError(t, c.EnforceBound(ctx, 100))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Count: 1, TotalBytes: 4}, stats)
}

func TestCache_EvictForRemovesBothVariants(t *testing.T) {
	c, kv := setupCache(t, 1<<20)
	ctx := context.Background()
	srv, _ := newBlobServer(t, []byte("data"))

	_, err := c.GetOrFetch(ctx, "event-7", srv.URL, models.BlobFull)
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, "event-7", srv.URL+"/thumb", models.BlobThumb)
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, "event-8", srv.URL, models.BlobFull)
	require.NoError(t, err)

	require.NoError(t, c.EvictFor(ctx, "event-7"))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Count: 1, TotalBytes: 4}, stats)

	_, err = kv.ReadBlob(ctx, blobName("event-7", models.BlobFull))
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = kv.ReadBlob(ctx, blobName("event-7", models.BlobThumb))
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, c.EvictFor(ctx, "event-7"), "evicting an absent owner is a no-op")
}

func TestCache_CoalescesConcurrentDownloads(t *testing.T) {
	c, _ := setupCache(t, 1<<20)
	ctx := context.Background()

	var hits atomic.Int32
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		_, _ = w.Write([]byte("shared"))
	}))
	t.Cleanup(srv.Close)

	var wg sync.WaitGroup
	results := make([][]byte, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.GetOrFetch(ctx, "e", srv.URL, models.BlobFull)
	}()

	// First caller is inside the download; a second one for the same key
	// must wait for it instead of fetching again.
	<-arrived
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = c.GetOrFetch(ctx, "e", srv.URL, models.BlobFull)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, []byte("shared"), results[0])
	assert.Equal(t, []byte("shared"), results[1])
	assert.Equal(t, int32(1), hits.Load(), "concurrent calls must share one download")
}

func TestCache_RetriesTransientDownload(t *testing.T) {
	c, _ := setupCache(t, 1<<20)
	ctx := context.Background()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	got, err := c.GetOrFetch(ctx, "e", srv.URL, models.BlobFull)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCache_NotFoundIsNotRetried(t *testing.T) {
	c, _ := setupCache(t, 1<<20)
	ctx := context.Background()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := c.GetOrFetch(ctx, "e", srv.URL, models.BlobFull)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCache_MissingPayloadBehindMetadataIsAMiss(t *testing.T) {
	c, kv := setupCache(t, 1<<20)
	ctx := context.Background()
	srv, hits := newBlobServer(t, []byte("art"))

	_, err := c.GetOrFetch(ctx, "e", srv.URL, models.BlobFull)
	require.NoError(t, err)

	// Simulate the payload file disappearing underneath the metadata row.
	require.NoError(t, kv.DeleteBlob(ctx, blobName("e", models.BlobFull)))

	got, err := c.GetOrFetch(ctx, "e", srv.URL, models.BlobFull)
	require.NoError(t, err)
	assert.Equal(t, []byte("art"), got)
	assert.Equal(t, int32(2), hits.Load(), "the entry must be re-downloaded")
}

func TestCache_StatsOnEmptyCache(t *testing.T) {
	c, _ := setupCache(t, 10)
	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
