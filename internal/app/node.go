package app

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/lbliii/bengal/internal/adapters/config"
	"github.com/lbliii/bengal/internal/adapters/fs"
	"github.com/lbliii/bengal/internal/adapters/logger"
	"github.com/lbliii/bengal/internal/adapters/telemetry"
	"github.com/lbliii/bengal/internal/core/ports"
)

// NodeID is the unique identifier for the main App Graft node.
const NodeID graft.ID = "app.main"

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fs.FingerprinterNodeID,
			logger.NodeID,
			telemetry.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}

			fp, err := graft.Dep[ports.Fingerprinter](ctx)
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

			return New(loader, fp, log, tel), nil
		},
	})
}
