// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/lbliii/bengal/internal/adapters/config"
	_ "github.com/lbliii/bengal/internal/adapters/fs"
	_ "github.com/lbliii/bengal/internal/adapters/logger"
	_ "github.com/lbliii/bengal/internal/adapters/telemetry"
	// Register the app node.
	_ "github.com/lbliii/bengal/internal/app"
)
