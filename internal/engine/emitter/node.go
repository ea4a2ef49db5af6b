package emitter

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the emitter Graft node.
const NodeID graft.ID = "engine.emitter"

func init() {
	graft.Register(graft.Node[*Emitter]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Emitter, error) {
			return New(), nil
		},
	})
}
