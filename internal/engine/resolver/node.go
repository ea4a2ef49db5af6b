package resolver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/knit/internal/core/ports"
)

// NodeID is the unique identifier for the resolver Graft node.
const NodeID graft.ID = "engine.resolver"

func init() {
	graft.Register(graft.Node[ports.SpecifierResolver]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.SpecifierResolver, error) {
			return New(), nil
		},
	})
}
