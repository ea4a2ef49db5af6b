package ports

import "go.trai.ch/knit/internal/core/domain"

// CacheStore persists remote module sources across runs, keyed by URL.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Get returns the entry for url.
	// Returns nil, nil on a miss, including entries that fail verification.
	Get(url string) (*domain.CacheEntry, error)

	// Put stores an entry. Readers observe either the previous entry or the complete new one.
	Put(entry domain.CacheEntry) error

	// List returns the metadata of all entries, sorted by URL. Sources are not loaded.
	List() ([]domain.CacheEntry, error)

	// Purge removes all entries and returns how many were removed.
	Purge() (int, error)

	// Dir returns the directory backing the store.
	Dir() string
}
