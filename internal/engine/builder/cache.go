package builder

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/zerr"
)

// DefaultParseCacheSize is the number of parse results kept by a ParseCache.
const DefaultParseCacheSize = 1024

type parseKey struct {
	id     domain.ModuleID
	digest uint64
}

func newParseKey(id domain.ModuleID, src []byte) parseKey {
	return parseKey{id: id, digest: xxhash.Sum64(src)}
}

// ParseCache keeps parse results keyed by module identity and source digest,
// so a module whose source did not change is not parsed again.
// A nil *ParseCache caches nothing.
type ParseCache struct {
	entries *lru.Cache[parseKey, *domain.ParsedModule]
}

// NewParseCache creates a ParseCache holding up to size results.
func NewParseCache(size int) (*ParseCache, error) {
	entries, err := lru.New[parseKey, *domain.ParsedModule](size)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create parse cache"), "size", size)
	}
	return &ParseCache{entries: entries}, nil
}

// Len returns the number of cached results.
func (c *ParseCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *ParseCache) get(key parseKey) (*domain.ParsedModule, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(key)
}

func (c *ParseCache) add(key parseKey, parsed *domain.ParsedModule) {
	if c == nil {
		return
	}
	c.entries.Add(key, parsed)
}
