// Package app implements the application layer for bengal.
package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lbliii/bengal/internal/adapters/cache"
	"github.com/lbliii/bengal/internal/adapters/fs"
	"github.com/lbliii/bengal/internal/adapters/markdown"
	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"github.com/lbliii/bengal/internal/engine/orchestrator"
	"github.com/lbliii/bengal/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// BuildOptions carries the driver's per-invocation flags.
type BuildOptions struct {
	// Full discards the loaded cache before discovering.
	Full bool
	// Sequential overrides the config and forces one worker per phase.
	Sequential bool
	// Fast disables non-essential diagnostics.
	Fast bool
	// MemoryOptimized streams output writes instead of buffering.
	MemoryOptimized bool
}

// App wires configuration loading to build cycles. Everything cycle-scoped
// (walker, store, scheduler, orchestrator) is constructed fresh per Build
// so repeated invocations by a driver never share mutable state.
type App struct {
	loader   ports.ConfigLoader
	fp       ports.Fingerprinter
	log      ports.Logger
	tel      ports.Telemetry
	renderer ports.Renderer // nil selects the reference markdown renderer
}

// New creates an App instance.
func New(loader ports.ConfigLoader, fp ports.Fingerprinter, log ports.Logger, tel ports.Telemetry) *App {
	return &App{loader: loader, fp: fp, log: log, tel: tel}
}

// WithRenderer swaps the renderer, used by tests and embedding drivers.
func (a *App) WithRenderer(r ports.Renderer) *App {
	a.renderer = r
	return a
}

// Build runs one build cycle in the current working directory and returns
// its summary. The returned error wraps domain.ErrCycleFailed when the
// cycle completed but some artifacts failed.
func (a *App) Build(ctx context.Context, opts BuildOptions) (orchestrator.Summary, error) {
	root, err := os.Getwd()
	if err != nil {
		return orchestrator.Summary{}, zerr.Wrap(err, "failed to resolve working directory")
	}
	return a.BuildIn(ctx, root, opts)
}

// BuildIn runs one build cycle rooted at the given directory.
func (a *App) BuildIn(ctx context.Context, root string, opts BuildOptions) (orchestrator.Summary, error) {
	cfg, err := a.loader.Load(root)
	if err != nil {
		return orchestrator.Summary{}, err
	}
	if opts.Fast {
		cfg.Fast = true
	}
	if opts.MemoryOptimized {
		cfg.MemoryOptimized = true
	}

	sequential := opts.Sequential || !cfg.ParallelEnabled()
	sched := scheduler.New(cfg.Scheduler, sequential)
	store := cache.NewStore(filepath.Join(root, cfg.Cache.File), cfg.Cache.Compress)

	renderer := a.renderer
	if renderer == nil {
		renderer = markdown.New(cfg)
	}

	orch := orchestrator.New(
		cfg,
		fs.NewWalker(cfg),
		a.fp,
		store,
		sched,
		renderer,
		a.log,
		a.tel,
	)

	mode := orchestrator.ModeIncremental
	if opts.Full {
		mode = orchestrator.ModeFull
	}

	sum, err := orch.RunCycle(ctx, mode)
	if err != nil {
		return sum, err
	}
	if sum.Failed > 0 {
		for _, f := range sum.Failures {
			a.log.Error(f.Err, "artifact", f.Output.String())
		}
		return sum, zerr.With(domain.ErrCycleFailed, "failed", sum.Failed)
	}
	return sum, nil
}

// Clean removes the output directory and the cache file.
func (a *App) Clean(root string) error {
	cfg, err := a.loader.Load(root)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(root, cfg.OutputDir)); err != nil {
		return zerr.Wrap(err, "failed to remove output directory")
	}
	if err := os.Remove(filepath.Join(root, cfg.Cache.File)); err != nil && !os.IsNotExist(err) {
		return zerr.Wrap(err, "failed to remove cache file")
	}
	return nil
}
