package optimizer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/knit/internal/adapters/config"
	"go.trai.ch/knit/internal/adapters/logger"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports"
)

// NodeID is the graft node providing the ports.Optimizer.
const NodeID graft.ID = "adapter.optimizer"

func init() {
	graft.Register(graft.Node[ports.Optimizer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Optimizer, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewCommand(cfg.OptimizerCommand, log), nil
		},
	})
}
