// Package app implements the application layer for knit.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/knit/internal/adapters/cas"
	"go.trai.ch/knit/internal/adapters/fetch"
	"go.trai.ch/knit/internal/adapters/watcher"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/knit/internal/engine/builder"
	"go.trai.ch/knit/internal/engine/emitter"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	config    *domain.Config
	resolver  ports.SpecifierResolver
	parser    ports.Parser
	emitter   *emitter.Emitter
	store     ports.CacheStore
	optimizer ports.Optimizer
	tracer    ports.Tracer
	logger    ports.Logger

	newWatcher   func() (ports.Watcher, error)
	fetcher      ports.Fetcher
	fetchOptions []fetch.Option
	parseCache   *builder.ParseCache
	workDir      string
	stdout       io.Writer
	debounce     time.Duration
	lookPath     func(string) (string, error)
}

// New creates a new App instance.
func New(
	cfg *domain.Config,
	resolver ports.SpecifierResolver,
	parser ports.Parser,
	em *emitter.Emitter,
	store ports.CacheStore,
	optimizer ports.Optimizer,
	tracer ports.Tracer,
	log ports.Logger,
) *App {
	return &App{
		config:    cfg,
		resolver:  resolver,
		parser:    parser,
		emitter:   em,
		store:     store,
		optimizer: optimizer,
		tracer:    tracer,
		logger:    log,
		stdout:    os.Stdout,
		debounce:  watcher.DefaultDebounceWindow,
		lookPath:  defaultLookPath,
	}
}

// WithWatcherFactory sets how watch mode creates its file watcher.
func (a *App) WithWatcherFactory(f func() (ports.Watcher, error)) *App {
	a.newWatcher = f
	return a
}

// WithFetcher replaces the fetcher built from the configuration.
// This is primarily used for testing.
func (a *App) WithFetcher(f ports.Fetcher) *App {
	a.fetcher = f
	return a
}

// WithFetchOptions adds options to every fetcher the App builds.
func (a *App) WithFetchOptions(opts ...fetch.Option) *App {
	a.fetchOptions = append(a.fetchOptions, opts...)
	return a
}

// WithParseCache reuses parse results across the builds of one process.
func (a *App) WithParseCache(c *builder.ParseCache) *App {
	a.parseCache = c
	return a
}

// WithWorkingDir sets the directory entry arguments and outputs are resolved against.
// It defaults to the process working directory.
func (a *App) WithWorkingDir(dir string) *App {
	a.workDir = dir
	return a
}

// WithStdout sets where a bundle written to "-" goes.
func (a *App) WithStdout(w io.Writer) *App {
	a.stdout = w
	return a
}

// WithDebounceWindow sets the quiet period watch mode waits for before rebuilding.
func (a *App) WithDebounceWindow(d time.Duration) *App {
	a.debounce = d
	return a
}

// BuildOptions overrides the project configuration for one command.
// Zero values keep the configured setting.
type BuildOptions struct {
	// Output is the bundle destination. "-" selects standard output.
	Output string
	// NoCache ignores cached remote modules. Fetched modules are still stored.
	NoCache bool
	// Concurrency bounds the fetches in flight.
	Concurrency int
	// Timeout bounds one remote fetch including retries.
	Timeout time.Duration
	// Optimize forces the optimizer stage on or off.
	Optimize *bool
}

// BuildResult describes a finished build.
type BuildResult struct {
	Graph   *domain.Graph
	Order   []domain.ModuleID
	Output  string
	Bytes   int
	Modules int
}

func (a *App) workingDir() (string, error) {
	if a.workDir != "" {
		return a.workDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "failed to get working directory")
	}
	return cwd, nil
}

func (a *App) entry(arg string) (domain.ModuleID, string, error) {
	cwd, err := a.workingDir()
	if err != nil {
		return domain.ModuleID{}, "", err
	}
	id, err := a.resolver.ResolveEntry(arg, cwd)
	if err != nil {
		return domain.ModuleID{}, "", err
	}
	return id, cwd, nil
}

func (a *App) newBuilder(opts BuildOptions) (*builder.Builder, error) {
	f := a.fetcher
	if f == nil {
		var store ports.CacheStore
		if a.config.CacheEnabled {
			store = a.store
		}
		timeout := a.config.Timeout
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		fetcher, err := fetch.New(store, a.logger, fetch.Options{
			UseCache:  !opts.NoCache,
			Timeout:   timeout,
			Retries:   a.config.Retries,
			UserAgent: a.config.UserAgent,
		}, a.fetchOptions...)
		if err != nil {
			return nil, err
		}
		f = fetcher
	}

	concurrency := a.config.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	return builder.New(a.resolver, f, a.parser, a.tracer, a.logger,
		builder.WithConcurrency(concurrency),
		builder.WithParseCache(a.parseCache),
	), nil
}

func (a *App) outputPath(cwd string, entry domain.ModuleID, flag string) string {
	switch {
	case flag == domain.StdoutPath:
		return flag
	case flag != "":
		if filepath.IsAbs(flag) {
			return flag
		}
		return filepath.Join(cwd, flag)
	case a.config.Output != "":
		return a.config.Output
	default:
		return domain.DefaultOutputPath(cwd, entry)
	}
}

func (a *App) optimizeEnabled(opts BuildOptions) bool {
	if opts.Optimize != nil {
		return *opts.Optimize
	}
	return a.config.OptimizerEnabled
}

// Build bundles the entry module and writes the result.
// Nothing is written when any stage fails.
func (a *App) Build(ctx context.Context, entryArg string, opts BuildOptions) (*BuildResult, error) {
	entry, cwd, err := a.entry(entryArg)
	if err != nil {
		return nil, err
	}
	b, err := a.newBuilder(opts)
	if err != nil {
		return nil, err
	}
	return a.build(ctx, b, entry, a.outputPath(cwd, entry, opts.Output), a.optimizeEnabled(opts))
}

func (a *App) build(
	ctx context.Context,
	b *builder.Builder,
	entry domain.ModuleID,
	output string,
	optimize bool,
) (*BuildResult, error) {
	g, order, err := a.graph(ctx, b, entry)
	if err != nil {
		return nil, err
	}

	data, err := a.emit(ctx, g, order)
	if err != nil {
		return nil, err
	}

	if optimize {
		data, err = a.optimize(ctx, data)
		if err != nil {
			return nil, err
		}
	}

	if err := a.write(output, data); err != nil {
		return nil, err
	}

	res := &BuildResult{
		Graph:   g,
		Order:   order,
		Output:  output,
		Bytes:   len(data),
		Modules: len(order),
	}
	if output != domain.StdoutPath {
		a.logger.Info(fmt.Sprintf("wrote %s (%d modules, %d bytes)", output, res.Modules, res.Bytes))
	}
	return res, nil
}

// graph discovers the modules of entry and computes their emission order.
func (a *App) graph(
	ctx context.Context,
	b *builder.Builder,
	entry domain.ModuleID,
) (*domain.Graph, []domain.ModuleID, error) {
	g, err := b.Build(ctx, entry)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := a.tracer.Start(ctx, "order")
	defer span.End()

	order, err := g.Order()
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	names := make([]string, len(order))
	for i, id := range order {
		names[i] = id.String()
	}
	a.tracer.EmitOrder(ctx, names)
	return g, order, nil
}

func (a *App) emit(ctx context.Context, g *domain.Graph, order []domain.ModuleID) ([]byte, error) {
	_, span := a.tracer.Start(ctx, "emit", ports.WithAttribute("modules", len(order)))
	defer span.End()

	bundle, err := a.emitter.Emit(g, order)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	data := bundle.Bytes()
	span.SetAttribute("bytes", len(data))
	return data, nil
}

func (a *App) optimize(ctx context.Context, data []byte) ([]byte, error) {
	ctx, span := a.tracer.Start(ctx, "optimize", ports.WithAttribute("bytes_in", len(data)))
	defer span.End()

	out, err := a.optimizer.Optimize(ctx, data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("bytes_out", len(out))
	return out, nil
}

func (a *App) write(output string, data []byte) error {
	if output == domain.StdoutPath {
		if _, err := a.stdout.Write(data); err != nil {
			return domain.NewError(domain.ErrOutputWriteFailed, err, "path", output)
		}
		return nil
	}
	if err := cas.WriteFileAtomic(output, data, domain.FilePerm); err != nil {
		return domain.NewError(domain.ErrOutputWriteFailed, err, "path", output)
	}
	return nil
}

// Deps prints every module of the entry's graph in emission order, one per
// line as "<key> <identity>".
func (a *App) Deps(ctx context.Context, entryArg string, opts BuildOptions, w io.Writer) error {
	entry, _, err := a.entry(entryArg)
	if err != nil {
		return err
	}
	b, err := a.newBuilder(opts)
	if err != nil {
		return err
	}
	_, order, err := a.graph(ctx, b, entry)
	if err != nil {
		return err
	}
	for _, id := range order {
		if _, err := fmt.Fprintf(w, "%s %s\n", id.Key(), id); err != nil {
			return zerr.Wrap(err, "failed to write dependency list")
		}
	}
	return nil
}

// Graph prints the entry's dependency graph in Graphviz DOT.
func (a *App) Graph(ctx context.Context, entryArg string, opts BuildOptions, w io.Writer) error {
	entry, _, err := a.entry(entryArg)
	if err != nil {
		return err
	}
	b, err := a.newBuilder(opts)
	if err != nil {
		return err
	}
	g, order, err := a.graph(ctx, b, entry)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, renderDOT(g, order)); err != nil {
		return zerr.Wrap(err, "failed to write dependency graph")
	}
	return nil
}
