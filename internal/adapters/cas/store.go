// Package cas implements the on-disk cache of remote module sources.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.CacheStore with two files per entry:
// the module source and a JSON metadata record, both named after the URL digest.
type Store struct {
	dir   string
	locks sync.Map // map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, domain.NewError(domain.ErrCacheCreateFailed, err, "dir", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func entryKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (s *Store) paths(url string) (data, meta string) {
	base := filepath.Join(s.dir, entryKey(url))
	return base + domain.CacheDataExt, base + domain.CacheMetaExt
}

func (s *Store) lock(url string) func() {
	mu, _ := s.locks.LoadOrStore(entryKey(url), &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Get returns the entry for url. Missing, corrupt and unverifiable entries are misses.
func (s *Store) Get(url string) (*domain.CacheEntry, error) {
	dataPath, metaPath := s.paths(url)

	entry, err := readMeta(metaPath)
	if err != nil || entry == nil {
		return entry, err
	}
	if entry.URL != url {
		return nil, nil
	}

	//nolint:gosec // Path is derived from the URL digest
	src, err := os.ReadFile(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewError(domain.ErrCacheReadFailed, err, "url", url, "path", dataPath)
	}
	entry.Source = src
	if !entry.Verify() {
		return nil, nil
	}
	return entry, nil
}

func readMeta(path string) (*domain.CacheEntry, error) {
	//nolint:gosec // Path is derived from the URL digest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewError(domain.ErrCacheReadFailed, err, "path", path)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil
	}
	return &entry, nil
}

// Put stores an entry. The source is written before its metadata, so a reader
// never observes metadata describing a source that is not yet in place.
func (s *Store) Put(entry domain.CacheEntry) error {
	dataPath, metaPath := s.paths(entry.URL)

	meta, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return domain.NewError(domain.ErrCacheWriteFailed, err, "url", entry.URL)
	}

	unlock := s.lock(entry.URL)
	defer unlock()

	if err := WriteFileAtomic(dataPath, entry.Source, domain.FilePerm); err != nil {
		return domain.NewError(domain.ErrCacheWriteFailed, err, "url", entry.URL, "path", dataPath)
	}
	if err := WriteFileAtomic(metaPath, meta, domain.FilePerm); err != nil {
		return domain.NewError(domain.ErrCacheWriteFailed, err, "url", entry.URL, "path", metaPath)
	}
	return nil
}

// List returns the metadata of all entries, sorted by URL.
func (s *Store) List() ([]domain.CacheEntry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewError(domain.ErrCacheReadFailed, err, "dir", s.dir)
	}

	var entries []domain.CacheEntry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != domain.CacheMetaExt {
			continue
		}
		entry, err := readMeta(filepath.Join(s.dir, f.Name()))
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		entries = append(entries, *entry)
	}

	slices.SortFunc(entries, func(a, b domain.CacheEntry) int {
		return strings.Compare(a.URL, b.URL)
	})
	return entries, nil
}

// Purge removes every entry and leftover temporary file, returning the number of entries removed.
func (s *Store) Purge() (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.NewError(domain.ErrCachePurgeFailed, err, "dir", s.dir)
	}

	removed := 0
	for _, f := range files {
		name := f.Name()
		ext := filepath.Ext(name)
		if f.IsDir() || (ext != domain.CacheDataExt && ext != domain.CacheMetaExt && !isTempFile(name)) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, domain.NewError(domain.ErrCachePurgeFailed, err, "path", filepath.Join(s.dir, name))
		}
		if ext == domain.CacheMetaExt {
			removed++
		}
	}
	return removed, nil
}

const tempPattern = ".tmp-*"

func isTempFile(name string) bool {
	ok, _ := filepath.Match(tempPattern, name)
	return ok
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create directory")
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return zerr.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return zerr.Wrap(err, "failed to set file permissions")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return zerr.Wrap(err, "failed to rename temp file")
	}
	return nil
}
