package app

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/knit/internal/adapters/fs"
	"go.trai.ch/knit/internal/adapters/watcher"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/knit/internal/engine/builder"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Watch builds the entry module, then rebuilds it whenever a local module of
// the graph changes. Failed rebuilds are reported and watching continues.
// Watch returns when ctx is done.
func (a *App) Watch(ctx context.Context, entryArg string, opts BuildOptions) error {
	if a.newWatcher == nil {
		return zerr.New("watch mode is not available")
	}

	entry, cwd, err := a.entry(entryArg)
	if err != nil {
		return err
	}
	if entry.IsRemote() {
		return domain.NewError(domain.ErrInvalidEntry, nil, "entry", entry.String(), "reason", "watch needs a local entry")
	}
	if a.parseCache == nil {
		cache, err := builder.NewParseCache(builder.DefaultParseCacheSize)
		if err != nil {
			return err
		}
		a.parseCache = cache
	}
	b, err := a.newBuilder(opts)
	if err != nil {
		return err
	}

	w, err := a.newWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Stop()
	}()

	s := &watchSession{
		app:      a,
		builder:  b,
		entry:    entry,
		output:   a.outputPath(cwd, entry, opts.Output),
		optimize: a.optimizeEnabled(opts),
		watcher:  w,
		tracker:  fs.NewChangeTracker(),
	}

	s.rebuild(ctx)
	if err := w.Start(ctx, s.dirs()); err != nil {
		return err
	}
	a.logger.Info("watching for changes, press Ctrl+C to stop")

	trigger := make(chan struct{}, 1)
	debouncer := watcher.NewDebouncer(a.debounce, func(paths []string) {
		a.logger.Debug("changed: " + strings.Join(paths, ", "))
		select {
		case trigger <- struct{}{}:
		default:
		}
	})

	g, ctx := errgroup.WithContext(ctx)

	// Event Routine
	g.Go(func() error {
		for event := range w.Events() {
			if s.relevant(event.Path) {
				debouncer.Add(event.Path)
			}
		}
		return nil
	})

	// Rebuild Routine
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-trigger:
				s.rebuild(ctx)
			}
		}
	})

	return g.Wait()
}

// watchSession holds the state shared by the event and rebuild routines.
type watchSession struct {
	app      *App
	builder  *builder.Builder
	entry    domain.ModuleID
	output   string
	optimize bool
	watcher  ports.Watcher
	tracker  *fs.ChangeTracker

	mu      sync.Mutex
	modules map[string]struct{}
	ok      bool
}

func (s *watchSession) rebuild(ctx context.Context) {
	res, err := s.app.build(ctx, s.builder, s.entry, s.output, s.optimize)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.app.logger.Error(err)
		s.mu.Lock()
		s.ok = false
		s.mu.Unlock()
		return
	}

	modules := make(map[string]struct{}, len(res.Order))
	for _, id := range res.Order {
		if id.IsRemote() {
			continue
		}
		modules[id.String()] = struct{}{}
		if err := s.tracker.Track(id.String()); err != nil {
			s.app.logger.Warn(err.Error())
		}
		if err := s.watcher.Add(id.Dir()); err != nil {
			s.app.logger.Warn(err.Error())
		}
	}

	s.mu.Lock()
	s.modules = modules
	s.ok = true
	s.mu.Unlock()
}

// dirs returns the directories holding the local modules of the last build.
func (s *watchSession) dirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirs := []string{s.entry.Dir()}
	for path := range s.modules {
		dirs = append(dirs, filepath.Dir(path))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

// relevant reports whether a change to path can affect the bundle. After a
// failed build any changed file in a watched directory counts, since the
// failure may be a module that does not exist yet.
func (s *watchSession) relevant(path string) bool {
	path = filepath.Clean(path)
	if path == s.output {
		return false
	}

	s.mu.Lock()
	_, known := s.modules[path]
	ok := s.ok
	s.mu.Unlock()

	if ok && !known {
		return false
	}
	changed, err := s.tracker.Changed(path)
	if err != nil {
		s.app.logger.Debug(fmt.Sprintf("ignoring %s: %v", path, err))
		return false
	}
	return changed
}
