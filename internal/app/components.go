package app

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/lbliii/bengal/internal/adapters/logger"
	"github.com/lbliii/bengal/internal/adapters/telemetry"
	"github.com/lbliii/bengal/internal/core/ports"
)

// Components bundles the wired application with the adapters the CLI shell
// needs directly.
type Components struct {
	App       *App
	Logger    ports.Logger
	Telemetry ports.Telemetry
}

// ComponentsNodeID is the unique identifier for the components Graft node.
const ComponentsNodeID graft.ID = "app.components"

func init() {
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			NodeID,
			logger.NodeID,
			telemetry.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: a, Logger: log, Telemetry: tel}, nil
		},
	})
}
