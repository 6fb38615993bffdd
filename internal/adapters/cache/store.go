// Package cache implements the crash-safe persistent snapshot store.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*Store)(nil)

// Store persists snapshots in a single file per build root. Commit is
// all-or-nothing: the snapshot is written to a temp file, fsynced, and
// renamed over the previous one, so a crash mid-build never corrupts the
// on-disk cache.
type Store struct {
	path     string
	compress bool

	loaded *domain.Snapshot
}

// NewStore creates a Store backed by the file at path. compress enables the
// zstd envelope on commit; loading always detects the envelope by its magic
// prefix regardless of this setting.
func NewStore(path string, compress bool) *Store {
	return &Store{path: filepath.Clean(path), compress: compress}
}

// Load reads the last committed snapshot. Missing, unreadable, corrupt, or
// schema-incompatible files degrade to an empty snapshot with an error
// wrapping domain.ErrCacheLoad; the caller logs it and rebuilds from
// scratch. A missing file is the normal first-run case and returns no
// error.
func (s *Store) Load() (*domain.Snapshot, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // Path is cleaned and provided by trusted caller
	if err != nil {
		s.loaded = domain.NewSnapshot()
		if errors.Is(err, fs.ErrNotExist) {
			return s.loaded, nil
		}
		return s.loaded, zerr.With(zerr.Wrap(domain.ErrCacheLoad, err.Error()), "path", s.path)
	}

	body, err := unwrapEnvelope(data)
	if err != nil {
		s.loaded = domain.NewSnapshot()
		return s.loaded, zerr.With(zerr.Wrap(domain.ErrCacheLoad, err.Error()), "path", s.path)
	}

	snap := domain.NewSnapshot()
	if err := json.Unmarshal(body, snap); err != nil {
		s.loaded = domain.NewSnapshot()
		return s.loaded, zerr.With(zerr.Wrap(domain.ErrCacheLoad, err.Error()), "path", s.path)
	}

	if snap.Schema != domain.SnapshotSchema {
		s.loaded = domain.NewSnapshot()
		return s.loaded, zerr.With(zerr.With(zerr.With(zerr.Wrap(domain.ErrCacheLoad, "schema mismatch"),
			"path", s.path), "got", snap.Schema), "want", domain.SnapshotSchema)
	}

	s.loaded = snap
	return snap, nil
}

// Commit atomically replaces the on-disk cache with snap.
func (s *Store) Commit(snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return zerr.Wrap(domain.ErrCacheCommit, err.Error())
	}

	if s.compress {
		data = wrapEnvelope(data)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheCommit, err.Error()), "dir", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return zerr.Wrap(domain.ErrCacheCommit, err.Error())
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(domain.ErrCacheCommit, err.Error())
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(domain.ErrCacheCommit, err.Error())
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(domain.ErrCacheCommit, err.Error())
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheCommit, err.Error()), "path", s.path)
	}

	s.loaded = snap
	return nil
}

// Get looks up one output record in the loaded snapshot.
func (s *Store) Get(outputID domain.InternedString) *domain.OutputArtifact {
	if s.loaded == nil {
		return nil
	}
	out, ok := s.loaded.Outputs[outputID]
	if !ok {
		return nil
	}
	return &out
}
