package cas_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.trai.ch/knit/internal/adapters/cas"
	"go.trai.ch/knit/internal/core/domain"
)

const testURL = "https://cdn.example.com/lib/x.js"

func entryPath(dir, url, ext string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+ext)
}

func newStore(t *testing.T) (*cas.Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "knit")
	store, err := cas.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, dir
}

func TestStore_PutAndGet(t *testing.T) {
	store, dir := newStore(t)

	retrieved := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := domain.NewCacheEntry(testURL, []byte("export const x = 1;\n"), retrieved)
	if err := store.Put(entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := os.Stat(entryPath(dir, testURL, domain.CacheDataExt)); err != nil {
		t.Errorf("expected source file: %v", err)
	}
	if _, err := os.Stat(entryPath(dir, testURL, domain.CacheMetaExt)); err != nil {
		t.Errorf("expected metadata file: %v", err)
	}

	got, err := store.Get(testURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if string(got.Source) != string(entry.Source) {
		t.Errorf("expected source %q, got %q", entry.Source, got.Source)
	}
	if !got.RetrievedAt.Equal(retrieved) {
		t.Errorf("expected RetrievedAt %v, got %v", retrieved, got.RetrievedAt)
	}
	if got.Digest != entry.Digest || got.Size != entry.Size {
		t.Errorf("metadata mismatch: %+v", got)
	}
}

func TestStore_Persistence(t *testing.T) {
	store1, dir := newStore(t)
	if err := store1.Put(domain.NewCacheEntry(testURL, []byte("a"), time.Now())); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	store2, err := cas.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore 2 failed: %v", err)
	}
	got, err := store2.Get(testURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || string(got.Source) != "a" {
		t.Fatalf("expected persisted entry, got %+v", got)
	}
}

func TestStore_Get_Misses(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(t *testing.T, dir string)
	}{
		{
			name:   "absent",
			mangle: func(t *testing.T, dir string) { removeAll(t, dir) },
		},
		{
			name: "corrupt metadata",
			mangle: func(t *testing.T, dir string) {
				writeFile(t, entryPath(dir, testURL, domain.CacheMetaExt), "{not json")
			},
		},
		{
			name: "missing source",
			mangle: func(t *testing.T, dir string) {
				if err := os.Remove(entryPath(dir, testURL, domain.CacheDataExt)); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "tampered source",
			mangle: func(t *testing.T, dir string) {
				writeFile(t, entryPath(dir, testURL, domain.CacheDataExt), "export const x = 2;\n")
			},
		},
		{
			name: "truncated source",
			mangle: func(t *testing.T, dir string) {
				writeFile(t, entryPath(dir, testURL, domain.CacheDataExt), "export")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newStore(t)
			if err := store.Put(domain.NewCacheEntry(testURL, []byte("export const x = 1;\n"), time.Now())); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			tt.mangle(t, dir)

			got, err := store.Get(testURL)
			if err != nil {
				t.Fatalf("expected a miss, got error: %v", err)
			}
			if got != nil {
				t.Errorf("expected a miss, got %+v", got)
			}
		})
	}
}

func TestStore_ListAndPurge(t *testing.T) {
	store, dir := newStore(t)

	urls := []string{"https://b.example/y.js", "https://a.example/x.js", "https://c.example/z.js"}
	for _, u := range urls {
		if err := store.Put(domain.NewCacheEntry(u, []byte(u), time.Now())); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	writeFile(t, filepath.Join(dir, ".tmp-leftover"), "partial")
	writeFile(t, filepath.Join(dir, "README"), "kept")

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"https://a.example/x.js", "https://b.example/y.js", "https://c.example/z.js"} {
		if entries[i].URL != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].URL)
		}
		if entries[i].Source != nil {
			t.Errorf("entry %d: List must not load sources", i)
		}
	}

	n, err := store.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 removed, got %d", n)
	}

	left, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Name() != "README" {
		t.Errorf("expected only README to remain, got %v", left)
	}

	entries, err = store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty cache, got %d entries", len(entries))
	}
}

func TestStore_PurgeMissingDir(t *testing.T) {
	store, dir := newStore(t)
	removeAll(t, dir)

	n, err := store.Purge()
	if err != nil || n != 0 {
		t.Errorf("expected 0, nil; got %d, %v", n, err)
	}
}

func TestStore_ConcurrentPut(t *testing.T) {
	store, _ := newStore(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			src := []byte(fmt.Sprintf("export const v = %d;\n", i))
			if err := store.Put(domain.NewCacheEntry(testURL, src, time.Now())); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		})
	}
	wg.Wait()

	got, err := store.Get(testURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a complete entry after concurrent writes")
	}
}

func TestNewStore_CreateFailed(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "")

	_, err := cas.NewStore(filepath.Join(file, "cache"))
	if !errors.Is(err, domain.ErrCacheCreateFailed) {
		t.Fatalf("expected ErrCacheCreateFailed, got %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.js")
	if err := cas.WriteFileAtomic(path, []byte("one"), domain.FilePerm); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := cas.WriteFileAtomic(path, []byte("two"), domain.FilePerm); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("expected %q, got %q", "two", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != domain.FilePerm {
		t.Errorf("expected mode %o, got %o", domain.FilePerm, info.Mode().Perm())
	}

	left, _ := os.ReadDir(filepath.Dir(path))
	if len(left) != 1 {
		t.Errorf("expected no temp files, got %v", left)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), domain.FilePerm); err != nil {
		t.Fatal(err)
	}
}

func removeAll(t *testing.T, dir string) {
	t.Helper()
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
}
