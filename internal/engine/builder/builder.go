// Package builder constructs the dependency graph of an entry module.
package builder

import (
	"context"
	"fmt"
	"runtime"

	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/zerr"
)

// Builder discovers every module reachable from an entry module.
//
// Fetches run concurrently up to the configured limit. Parsing, resolution and
// every mutation of the graph happen on the goroutine that called Build.
type Builder struct {
	resolver ports.SpecifierResolver
	fetcher  ports.Fetcher
	parser   ports.Parser
	tracer   ports.Tracer
	logger   ports.Logger

	concurrency int
	cache       *ParseCache
}

// Option configures a Builder.
type Option func(*Builder)

// WithConcurrency bounds the number of fetches in flight. Values below 1 select runtime.NumCPU.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		b.concurrency = n
	}
}

// WithParseCache reuses parse results of unchanged modules across builds.
func WithParseCache(c *ParseCache) Option {
	return func(b *Builder) {
		b.cache = c
	}
}

// New creates a new Builder.
func New(
	resolver ports.SpecifierResolver,
	fetcher ports.Fetcher,
	parser ports.Parser,
	tracer ports.Tracer,
	logger ports.Logger,
	opts ...Option,
) *Builder {
	b := &Builder{
		resolver:    resolver,
		fetcher:     fetcher,
		parser:      parser,
		tracer:      tracer,
		logger:      logger,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the complete, acyclic graph rooted at entry.
// The first failure aborts the build and cancels outstanding fetches.
func (b *Builder) Build(ctx context.Context, entry domain.ModuleID) (*domain.Graph, error) {
	ctx, span := b.tracer.Start(ctx, "build graph", ports.WithAttribute("entry", entry.String()))
	defer span.End()

	g := domain.NewGraph(entry)
	if err := g.Add(domain.NewModule(entry, 0)); err != nil {
		return nil, err
	}

	state := b.newRunState(ctx, g)
	if err := state.run(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := g.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttribute("modules", g.Len())
	b.logger.Debug(fmt.Sprintf("discovered %d modules", g.Len()))
	return g, nil
}

type fetchResult struct {
	id     domain.ModuleID
	source []byte
	err    error
}

type runState struct {
	ctx       context.Context
	cancel    context.CancelFunc
	b         *Builder
	graph     *domain.Graph
	ready     []domain.ModuleID
	active    int
	resultsCh chan fetchResult
	err       error
}

func (b *Builder) newRunState(ctx context.Context, g *domain.Graph) *runState {
	ctx, cancel := context.WithCancel(ctx)
	return &runState{
		ctx:       ctx,
		cancel:    cancel,
		b:         b,
		graph:     g,
		ready:     []domain.ModuleID{g.Entry()},
		resultsCh: make(chan fetchResult, b.concurrency),
	}
}

func (state *runState) run() error {
	defer state.cancel()

	for {
		if state.err == nil {
			state.schedule()
		}
		if state.active == 0 {
			break
		}

		res := <-state.resultsCh
		state.active--
		if state.err != nil {
			// Draining fetches cancelled by an earlier failure.
			continue
		}
		state.handleResult(res)
	}

	if state.err != nil {
		return state.err
	}
	return state.ctx.Err()
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.b.concurrency && state.ctx.Err() == nil {
		id := state.ready[0]
		state.ready = state.ready[1:]
		state.active++

		go func(id domain.ModuleID) {
			src, err := state.fetch(id)
			state.resultsCh <- fetchResult{id: id, source: src, err: err}
		}(id)
	}
}

func (state *runState) fetch(id domain.ModuleID) ([]byte, error) {
	ctx, span := state.b.tracer.Start(state.ctx, "fetch", ports.WithAttribute("module", id.String()))
	defer span.End()

	src, err := state.b.fetcher.Fetch(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("bytes", len(src))
	return src, nil
}

func (state *runState) handleResult(res fetchResult) {
	m, ok := state.graph.Get(res.id)
	if !ok {
		state.fail(nil, domain.NewError(domain.ErrIncompleteGraph, nil, "module", res.id.String()))
		return
	}
	if res.err != nil {
		state.fail(m, res.err)
		return
	}
	m.Source = res.source
	m.Status = domain.StatusFetched

	parsed, err := state.b.parse(state.ctx, m)
	if err != nil {
		state.fail(m, err)
		return
	}
	m.Apply(parsed)
	m.Status = domain.StatusParsed

	for i := range m.Imports {
		edge := &m.Imports[i]
		target, err := state.b.resolver.Resolve(edge.Specifier, m.ID)
		if err != nil {
			state.fail(m, zerr.With(err, "line", edge.Line))
			return
		}
		edge.Target = target

		if _, seen := state.graph.Get(target); seen {
			continue
		}
		if err := state.graph.Add(domain.NewModule(target, state.graph.Len())); err != nil {
			state.fail(m, err)
			return
		}
		state.ready = append(state.ready, target)
		state.b.logger.Debug(fmt.Sprintf("discovered %s (imported by %s)", target, m.ID))
	}
	m.Status = domain.StatusResolved
}

func (state *runState) fail(m *domain.Module, err error) {
	if m != nil {
		m.Status = domain.StatusFailed
		err = zerr.With(err, "module", m.ID.String())
	}
	state.err = err
	state.cancel()
}

func (b *Builder) parse(ctx context.Context, m *domain.Module) (*domain.ParsedModule, error) {
	key := newParseKey(m.ID, m.Source)
	if parsed, ok := b.cache.get(key); ok {
		return parsed, nil
	}

	_, span := b.tracer.Start(ctx, "parse", ports.WithAttribute("module", m.ID.String()))
	defer span.End()

	parsed, err := b.parser.Parse(m.ID, m.Source)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	b.cache.add(key, parsed)
	return parsed, nil
}
