package domain

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName is the name of the tool, used for the cache directory and User-Agent.
	AppName = "knit"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "knit.yaml"

	// CacheDataExt is the extension of cached module sources.
	CacheDataExt = ".js"

	// CacheMetaExt is the extension of cached module metadata.
	CacheMetaExt = ".json"

	// BundleSuffix is appended to the entry name to form the default output file.
	BundleSuffix = ".bundle.js"

	// StdoutPath selects standard output as the bundle destination.
	StdoutPath = "-"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultCachePath returns the default module cache directory.
// It honours XDG_CACHE_HOME through os.UserCacheDir and falls back to ~/.cache.
func DefaultCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", err
		}
		dir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultOutputPath returns the bundle file name for an entry, placed in dir.
func DefaultOutputPath(dir string, entry ModuleID) string {
	base := entry.Base()
	for _, ext := range []string{".mjs", ".js"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	return filepath.Join(dir, base+BundleSuffix)
}
