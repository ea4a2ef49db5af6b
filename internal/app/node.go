package app

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/knit/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/knit/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/knit/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/knit/internal/adapters/optimizer" //nolint:depguard // Wired in app layer
	"go.trai.ch/knit/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/knit/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/knit/internal/engine/builder"
	"go.trai.ch/knit/internal/engine/emitter"
	"go.trai.ch/knit/internal/engine/parser"
	"go.trai.ch/knit/internal/engine/resolver"
	"go.trai.ch/zerr"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.SettingsNodeID,
			resolver.NodeID,
			parser.NodeID,
			emitter.NodeID,
			cas.NodeID,
			optimizer.NodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
			watcher.FactoryNodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewComponents(app, log), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	cfg, err := graft.Dep[*domain.Config](ctx)
	if err != nil {
		return nil, err
	}
	res, err := graft.Dep[ports.SpecifierResolver](ctx)
	if err != nil {
		return nil, err
	}
	p, err := graft.Dep[ports.Parser](ctx)
	if err != nil {
		return nil, err
	}
	em, err := graft.Dep[*emitter.Emitter](ctx)
	if err != nil {
		return nil, err
	}
	store, err := graft.Dep[ports.CacheStore](ctx)
	if err != nil {
		return nil, err
	}
	opt, err := graft.Dep[ports.Optimizer](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	newWatcher, err := graft.Dep[watcher.Factory](ctx)
	if err != nil {
		return nil, err
	}

	cache, err := builder.NewParseCache(builder.DefaultParseCacheSize)
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to get working directory")
	}

	return New(cfg, res, p, em, store, opt, tracer, log).
		WithWatcherFactory(newWatcher).
		WithParseCache(cache).
		WithWorkingDir(cwd), nil
}
