package domain

import "go.trai.ch/zerr"

var (
	// ErrDiscovery marks an unreadable source file. The artifact is skipped
	// and discovery continues.
	ErrDiscovery = zerr.New("source unreadable")

	// ErrRender marks a per-artifact render failure. It is recorded against
	// that output only; the previous on-disk output is left untouched.
	ErrRender = zerr.New("render failed")

	// ErrCacheLoad marks a missing, corrupt, or schema-incompatible cache
	// file. Never fatal: the build degrades to a full rebuild.
	ErrCacheLoad = zerr.New("cache unreadable")

	// ErrCacheCommit marks a failed cache write. Fatal for the cycle; the
	// previous cache remains valid because commit is atomic.
	ErrCacheCommit = zerr.New("cache commit failed")

	// ErrConfig marks an invalid configuration. Fatal before dispatch since
	// it would miscompute every output.
	ErrConfig = zerr.New("invalid configuration")

	// ErrCycleFailed reports that a cycle completed with per-artifact
	// failures. The driver maps it to a non-zero exit status.
	ErrCycleFailed = zerr.New("build cycle completed with failures")
)
