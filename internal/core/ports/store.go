package ports

import "github.com/lbliii/bengal/internal/core/domain"

// CacheStore persists build snapshots across runs.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Load reads the last committed snapshot. A missing, corrupt, or
	// schema-incompatible cache file is never a hard failure: Load returns
	// an empty snapshot together with an error wrapping
	// domain.ErrCacheLoad that the caller logs and continues from.
	Load() (*domain.Snapshot, error)

	// Commit writes the snapshot atomically (temp file, fsync, rename).
	// A crash mid-commit leaves the previous cache intact.
	Commit(snap *domain.Snapshot) error

	// Get looks up one output record in the loaded snapshot.
	// Returns nil if absent.
	Get(outputID domain.InternedString) *domain.OutputArtifact
}
