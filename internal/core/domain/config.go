package domain

import (
	"runtime"
	"time"
)

const (
	// DefaultFetchTimeout bounds a single remote fetch including retries.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultFetchRetries is the number of retries after a transient fetch failure.
	DefaultFetchRetries = 3
)

// DefaultOptimizerCommand is the optimizer invoked when none is configured.
var DefaultOptimizerCommand = []string{"terser", "--compress", "--mangle"}

// Config holds the effective project settings.
type Config struct {
	// Root is the directory holding the config file, or the working directory.
	Root string
	// Path is the config file that was loaded. Empty when defaults are used.
	Path string

	// Output is the bundle destination. Empty selects the default next to the working directory.
	Output string

	CacheDir     string
	CacheEnabled bool

	Concurrency int
	Timeout     time.Duration
	Retries     int
	// UserAgent overrides the User-Agent header of remote fetches.
	UserAgent string

	OptimizerEnabled bool
	OptimizerCommand []string
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:             root,
		CacheEnabled:     true,
		Concurrency:      runtime.NumCPU(),
		Timeout:          DefaultFetchTimeout,
		Retries:          DefaultFetchRetries,
		OptimizerCommand: append([]string(nil), DefaultOptimizerCommand...),
	}
}
