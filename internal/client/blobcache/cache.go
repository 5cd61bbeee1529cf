package blobcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/sethvargo/go-retry"
)

const metaPrefix = "blob/"

// nowMillis is a test seam for the cache clock.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Stats summarizes the cache from metadata alone; blob payloads are never
// read to compute it.
type Stats struct {
	Count      int
	TotalBytes int64
}

// inflight is one shared download late callers wait on.
type inflight struct {
	done chan struct{}
	data []byte
	err  error
}

// Cache is the bounded artwork cache. One instance serves the whole client.
type Cache struct {
	store    localstore.Store
	client   *http.Client
	log      logging.Logger
	maxBytes int64

	mu       sync.Mutex
	inflight map[string]*inflight

	retries   uint64
	retryBase time.Duration
}

// New builds a Cache bounded at maxBytes using the given durable store.
func New(store localstore.Store, maxBytes int64, log logging.Logger) *Cache {
	return &Cache{
		store:     store,
		client:    &http.Client{Timeout: 60 * time.Second},
		log:       log,
		maxBytes:  maxBytes,
		inflight:  make(map[string]*inflight),
		retries:   2,
		retryBase: 500 * time.Millisecond,
	}
}

func metaKey(ownerID string, variant models.BlobVariant) string {
	return metaPrefix + ownerID + "/" + string(variant)
}

func blobName(ownerID string, variant models.BlobVariant) string {
	return ownerID + "/" + string(variant)
}

// GetOrFetch returns the cached bytes for (ownerID, variant), downloading
// them from sourceURL on a miss. A hit refreshes the entry's access time; a
// successful download stores the entry and then re-enforces the size bound.
// Concurrent calls for the same key share a single download.
func (c *Cache) GetOrFetch(ctx context.Context, ownerID, sourceURL string, variant models.BlobVariant) ([]byte, error) {
	if data, ok, err := c.lookup(ctx, ownerID, variant); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}

	key := metaKey(ownerID, variant)

	c.mu.Lock()
	if fl, ok := c.inflight[key]; ok {
		// Another caller is already downloading this entry; wait for it.
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.data, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	data, err := c.fetchAndStore(ctx, ownerID, sourceURL, variant)

	fl.data, fl.err = data, err
	close(fl.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return data, err
}

// lookup serves a cache hit, refreshing the access time. A metadata row
// whose payload file went missing counts as a miss.
func (c *Cache) lookup(ctx context.Context, ownerID string, variant models.BlobVariant) ([]byte, bool, error) {
	meta, ok, err := c.readMeta(ctx, ownerID, variant)
	if err != nil || !ok {
		return nil, false, err
	}

	data, err := c.store.ReadBlob(ctx, meta.Path)
	if errors.Is(err, common.ErrNotFound) {
		c.log.Warn(ctx, "cache metadata without payload, treating as miss", "owner_id", ownerID, "variant", variant)
		_ = c.store.Remove(ctx, metaKey(ownerID, variant))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	meta.LastAccessedAt = nowMillis()
	if err := c.writeMeta(ctx, meta); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// fetchAndStore downloads the payload, persists bytes and metadata, and
// evicts down to the bound.
func (c *Cache) fetchAndStore(ctx context.Context, ownerID, sourceURL string, variant models.BlobVariant) ([]byte, error) {
	data, err := c.download(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", ownerID, variant, err)
	}

	name := blobName(ownerID, variant)
	if err := c.store.WriteBlob(ctx, name, data); err != nil {
		return nil, err
	}

	now := nowMillis()
	meta := &models.CachedBlob{
		OwnerID:        ownerID,
		Variant:        variant,
		Path:           name,
		SizeBytes:      int64(len(data)),
		SourceURL:      sourceURL,
		DownloadedAt:   now,
		LastAccessedAt: now,
	}
	if err := c.writeMeta(ctx, meta); err != nil {
		return nil, err
	}

	if err := c.EnforceBound(ctx, c.maxBytes); err != nil {
		c.log.Warn(ctx, "bound enforcement after download failed", "error", err)
	}
	return data, nil
}

// download retrieves the payload, retrying transient failures.
func (c *Cache) download(ctx context.Context, sourceURL string) ([]byte, error) {
	var data []byte

	backoff := retry.WithMaxRetries(c.retries, retry.NewFibonacci(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.downloadOnce(ctx, sourceURL)
		if err != nil {
			if common.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		data = b
		return nil
	})
	return data, err
}

func (c *Cache) downloadOnce(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: download status %d", common.ErrTransient, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("download %q: %w", sourceURL, common.ErrNotFound)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: download status %d", common.ErrRemoteRejected, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrTransient, err)
	}
	return data, nil
}

// EvictFor removes both variants cached for the owner. Used when the member
// cancels an event registration; absent entries are a no-op.
func (c *Cache) EvictFor(ctx context.Context, ownerID string) error {
	for _, variant := range []models.BlobVariant{models.BlobFull, models.BlobThumb} {
		meta, ok, err := c.readMeta(ctx, ownerID, variant)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := c.evict(ctx, meta); err != nil {
			return err
		}
	}
	return nil
}

// EnforceBound evicts least-recently-accessed entries until the total size
// fits maxBytes. Access-time ties fall to the earliest download.
func (c *Cache) EnforceBound(ctx context.Context, maxBytes int64) error {
	metas, total, err := c.readAllMeta(ctx)
	if err != nil {
		return err
	}
	if total <= maxBytes {
		return nil
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].LastAccessedAt != metas[j].LastAccessedAt {
			return metas[i].LastAccessedAt < metas[j].LastAccessedAt
		}
		return metas[i].DownloadedAt < metas[j].DownloadedAt
	})

	for _, meta := range metas {
		if total <= maxBytes {
			break
		}
		if err := c.evict(ctx, meta); err != nil {
			return err
		}
		total -= meta.SizeBytes
		c.log.Debug(ctx, "evicted cache entry",
			"owner_id", meta.OwnerID, "variant", meta.Variant, "size_bytes", meta.SizeBytes)
	}
	return nil
}

// Stats reports entry count and total size from metadata alone.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	metas, total, err := c.readAllMeta(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: len(metas), TotalBytes: total}, nil
}

func (c *Cache) evict(ctx context.Context, meta *models.CachedBlob) error {
	if err := c.store.DeleteBlob(ctx, meta.Path); err != nil {
		return err
	}
	return c.store.Remove(ctx, metaKey(meta.OwnerID, meta.Variant))
}

func (c *Cache) readMeta(ctx context.Context, ownerID string, variant models.BlobVariant) (*models.CachedBlob, bool, error) {
	value, ok, err := c.store.GetString(ctx, metaKey(ownerID, variant))
	if err != nil || !ok {
		return nil, false, err
	}
	var meta models.CachedBlob
	if err := json.Unmarshal([]byte(value), &meta); err != nil {
		return nil, false, fmt.Errorf("cache metadata %s/%s: %w: %v", ownerID, variant, common.ErrCorruptRecord, err)
	}
	return &meta, true, nil
}

func (c *Cache) writeMeta(ctx context.Context, meta *models.CachedBlob) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal cache metadata: %w", err)
	}
	return c.store.SetString(ctx, metaKey(meta.OwnerID, meta.Variant), string(b))
}

func (c *Cache) readAllMeta(ctx context.Context) ([]*models.CachedBlob, int64, error) {
	keys, err := c.store.Keys(ctx, metaPrefix)
	if err != nil {
		return nil, 0, err
	}

	metas := make([]*models.CachedBlob, 0, len(keys))
	var total int64
	for _, key := range keys {
		value, ok, err := c.store.GetString(ctx, key)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		var meta models.CachedBlob
		if err := json.Unmarshal([]byte(value), &meta); err != nil {
			c.log.Warn(ctx, "skipping corrupt cache metadata", "key", key, "error", err)
			continue
		}
		metas = append(metas, &meta)
		total += meta.SizeBytes
	}
	return metas, total, nil
}
