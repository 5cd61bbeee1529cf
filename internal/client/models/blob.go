package models

// BlobVariant distinguishes independently cached renditions of one artwork.
type BlobVariant string

const (
	BlobFull  BlobVariant = "full"
	BlobThumb BlobVariant = "thumb"
)

// CachedBlob is the metadata row for one cached rendition. The bytes live
// as a file in the blob area; this row lives in the KV store and drives
// LRU eviction.
type CachedBlob struct {
	OwnerID string      `json:"owner_id"`
	Variant BlobVariant `json:"variant"`

	// Path is the file name inside the blob area.
	Path string `json:"path"`

	SizeBytes int64  `json:"size_bytes"`
	SourceURL string `json:"source_url"`

	// DownloadedAt and LastAccessedAt are Unix milliseconds. Eviction
	// removes the least recently accessed entry first, breaking ties by
	// the earliest download.
	DownloadedAt   int64 `json:"downloaded_at"`
	LastAccessedAt int64 `json:"last_accessed_at"`
}
