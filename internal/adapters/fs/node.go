package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/lbliii/bengal/internal/core/ports"
)

// FingerprinterNodeID is the unique identifier for the fingerprinter Graft node.
const FingerprinterNodeID graft.ID = "adapter.fs.fingerprinter"

func init() {
	graft.Register(graft.Node[ports.Fingerprinter]{
		ID:        FingerprinterNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Fingerprinter, error) {
			return NewFingerprinter(), nil
		},
	})
}
