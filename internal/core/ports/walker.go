package ports

import "github.com/lbliii/bengal/internal/core/domain"

// DiscoveredSource is one file found during discovery, before
// fingerprinting.
type DiscoveredSource struct {
	ID   domain.InternedString
	Kind domain.SourceKind
	Path string
}

// SourceWalker enumerates the source tree. Per-file read errors during the
// walk are reported by the caller as discovery errors; the walk itself
// continues.
//
//go:generate go run go.uber.org/mock/mockgen -source=walker.go -destination=mocks/mock_walker.go -package=mocks
type SourceWalker interface {
	// Walk returns every source file under the configured roots, in a
	// deterministic order.
	Walk() ([]DiscoveredSource, error)
}
