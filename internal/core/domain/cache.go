package domain

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CacheEntry is a remote module source persisted across runs.
// Its identity is the source URL.
type CacheEntry struct {
	URL         string    `json:"url"`
	Source      []byte    `json:"-"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Size        int       `json:"size"`
	Digest      string    `json:"digest"`
}

// NewCacheEntry creates an entry for src retrieved from url at the given time.
func NewCacheEntry(url string, src []byte, retrievedAt time.Time) CacheEntry {
	return CacheEntry{
		URL:         url,
		Source:      src,
		RetrievedAt: retrievedAt.UTC(),
		Size:        len(src),
		Digest:      ContentDigest(src),
	}
}

// Verify reports whether Source matches the recorded size and digest.
func (e *CacheEntry) Verify() bool {
	return len(e.Source) == e.Size && ContentDigest(e.Source) == e.Digest
}

// ContentDigest returns the hex xxhash of src.
func ContentDigest(src []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(src))
}
