package ports

import "github.com/lbliii/bengal/internal/core/domain"

// ConfigLoader defines the interface for loading the engine configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration from the given build root. A malformed
	// file is a domain.ErrConfig: fatal, since it would miscompute every
	// output.
	Load(root string) (*domain.Config, error)
}
