package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/knit/internal/adapters/config"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the graft node providing the ports.CacheStore.
// The store is nil when the cache is disabled in the configuration.
const NodeID graft.ID = "adapter.cache_store"

func init() {
	graft.Register(graft.Node[ports.CacheStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID},
		Run: func(ctx context.Context) (ports.CacheStore, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			if !cfg.CacheEnabled {
				return nil, nil
			}
			dir := cfg.CacheDir
			if dir == "" {
				dir, err = domain.DefaultCachePath()
				if err != nil {
					return nil, zerr.Wrap(err, "failed to determine module cache directory")
				}
			}
			return NewStore(dir)
		},
	})
}
