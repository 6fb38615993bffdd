package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"github.com/lbliii/bengal/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// renderRecord is a worker's immutable result for one output. Records are
// merged serially during Collecting, so nothing here needs locking.
type renderRecord struct {
	output domain.OutputArtifact
	body   []byte
	err    error
}

// dispatch renders the given outputs across the worker count chosen by the
// scheduler. Workers only read from the request's snapshot views; the one
// shared structure is the fragment cache, which guards itself.
//
// Per-artifact failures land in the records; the only error returned is
// context cancellation, which stops new dispatch while in-flight workers
// finish cleanly.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	phase scheduler.Phase,
	requests []ports.RenderRequest,
) ([]renderRecord, error) {
	decision := o.sched.Choose(phase, len(requests))
	o.log.Info("dispatching work",
		"phase", string(phase),
		"tasks", len(requests),
		"workers", decision.Workers,
		"parallel", decision.Parallel)

	records := make([]renderRecord, len(requests))

	if !decision.Parallel {
		for i, req := range requests {
			if err := ctx.Err(); err != nil {
				return records[:i], err
			}
			records[i] = o.renderOne(ctx, req)
		}
		return records, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decision.Workers)
	for i, req := range requests {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			records[i] = o.renderOne(gctx, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records, err
	}
	return records, ctx.Err()
}

// renderOne invokes the external renderer for a single output and builds its
// immutable record. In memory-optimized mode the rendered body is streamed
// to disk here and dropped; otherwise it is carried to the collect phase.
func (o *Orchestrator) renderOne(ctx context.Context, req ports.RenderRequest) renderRecord {
	var vtx ports.Vertex
	if !o.cfg.Fast {
		_, vtx = o.tel.Record(ctx, "render "+req.Output.String())
	}

	res, err := o.renderer.Render(ctx, req)
	if err != nil {
		if vtx != nil {
			vtx.Done(err)
		}
		return renderRecord{
			output: domain.OutputArtifact{ID: req.Output},
			err:    zerr.With(zerr.Wrap(err, "render failed"), "output", req.Output.String()),
		}
	}

	hash := res.Hash
	body := res.Body
	if hash.IsZero() {
		hash = o.fp.FingerprintBytes(body)
	}

	record := renderRecord{
		output: domain.OutputArtifact{
			ID:         req.Output,
			Source:     req.Source.ID,
			Hash:       hash,
			Deps:       res.Deps,
			Aggregate:  req.Aggregate,
			Tags:       res.Tags,
			RenderedAt: time.Now(),
		},
		body: body,
	}

	if o.cfg.MemoryOptimized && len(body) > 0 {
		record.err = o.writeOutput(req.Output, body)
		record.body = nil
	}

	if vtx != nil {
		vtx.Done(record.err)
	}
	return record
}

// writeOutput places rendered bytes at their output path. A failed render
// never reaches here, so the previous on-disk output of a broken page stays
// in place.
func (o *Orchestrator) writeOutput(id domain.InternedString, body []byte) error {
	path := filepath.Join(o.cfg.Root, o.cfg.OutputDir, filepath.FromSlash(id.String()))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create output directory"), "output", id.String())
	}
	if err := os.WriteFile(path, body, 0o644); err != nil { //nolint:gosec // Site output is world-readable
		return zerr.With(zerr.Wrap(err, "failed to write output"), "output", id.String())
	}
	return nil
}

func (o *Orchestrator) removeOutput(id domain.InternedString) {
	path := filepath.Join(o.cfg.Root, o.cfg.OutputDir, filepath.FromSlash(id.String()))
	_ = os.Remove(path)
}
