// Package config provides the configuration loader for knit.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only knit.yaml schema version understood by the loader.
const SupportedVersion = "1"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
}

// NewLoader creates a new Loader with the given logger reading from the OS filesystem.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS()}
}

// Load reads knit.yaml from cwd or the nearest parent directory.
// Defaults rooted at cwd are returned when no config file exists.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	root, err := l.DiscoverRoot(cwd)
	if errors.Is(err, domain.ErrConfigNotFound) {
		l.Logger.Debug("no " + domain.ConfigFileName + " found, using defaults")
		return domain.DefaultConfig(cwd), nil
	}
	if err != nil {
		return nil, err
	}

	path := filepath.Join(root, domain.ConfigFileName)
	var knitfile Knitfile
	if err := l.readAndUnmarshalYAML(path, &knitfile); err != nil {
		return nil, err
	}

	cfg, err := knitfile.toConfig(root)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	cfg.Path = path
	l.Logger.Debug("loaded " + path)
	return cfg, nil
}

// DiscoverRoot walks up from cwd to the directory containing knit.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		info, err := l.FS.Stat(candidate)
		if err == nil && !info.IsDir() {
			return currentDir, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", domain.NewError(domain.ErrConfigReadFailed, err, "path", candidate)
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}
	return "", domain.NewError(domain.ErrConfigNotFound, nil, "cwd", cwd)
}

func (l *Loader) readAndUnmarshalYAML(path string, dest any) error {
	data, err := l.FS.ReadFile(path)
	if err != nil {
		return domain.NewError(domain.ErrConfigReadFailed, err, "path", path)
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		return domain.NewError(domain.ErrConfigParseFailed, err, "path", path)
	}
	return nil
}

// toConfig overlays the file's settings on the defaults.
// Relative paths are resolved against root.
func (k *Knitfile) toConfig(root string) (*domain.Config, error) {
	if k.Version != "" && k.Version != SupportedVersion {
		return nil, domain.NewError(domain.ErrConfigInvalid, nil, "version", k.Version)
	}

	cfg := domain.DefaultConfig(root)
	if k.Output != "" {
		cfg.Output = resolvePath(root, k.Output)
	}

	if k.Cache.Dir != "" {
		cfg.CacheDir = resolvePath(root, k.Cache.Dir)
	}
	if k.Cache.Enabled != nil {
		cfg.CacheEnabled = *k.Cache.Enabled
	}

	switch {
	case k.Fetch.Concurrency < 0:
		return nil, domain.NewError(domain.ErrConfigInvalid, nil, "fetch.concurrency", k.Fetch.Concurrency)
	case k.Fetch.Concurrency > 0:
		cfg.Concurrency = k.Fetch.Concurrency
	}
	if k.Fetch.Timeout != "" {
		d, err := time.ParseDuration(k.Fetch.Timeout)
		if err != nil || d <= 0 {
			return nil, domain.NewError(domain.ErrConfigInvalid, nil, "fetch.timeout", k.Fetch.Timeout)
		}
		cfg.Timeout = d
	}
	if k.Fetch.Retries != nil {
		if *k.Fetch.Retries < 0 {
			return nil, domain.NewError(domain.ErrConfigInvalid, nil, "fetch.retries", *k.Fetch.Retries)
		}
		cfg.Retries = *k.Fetch.Retries
	}
	cfg.UserAgent = strings.TrimSpace(k.Fetch.UserAgent)

	if k.Optimizer.Enabled != nil {
		cfg.OptimizerEnabled = *k.Optimizer.Enabled
	}
	if len(k.Optimizer.Command) > 0 {
		if strings.TrimSpace(k.Optimizer.Command[0]) == "" {
			return nil, domain.NewError(domain.ErrConfigInvalid, nil, "optimizer.command", k.Optimizer.Command)
		}
		cfg.OptimizerCommand = append([]string(nil), k.Optimizer.Command...)
	}
	return cfg, nil
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}
