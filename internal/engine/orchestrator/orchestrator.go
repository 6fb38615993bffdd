// Package orchestrator runs one build cycle as a state machine: discover
// changes, propagate invalidation, dispatch dirty work to the renderer,
// collect results, recompute aggregates, commit atomically.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"github.com/lbliii/bengal/internal/engine/scheduler"
)

// Mode selects how a cycle treats the loaded cache.
type Mode string

const (
	// ModeIncremental reuses the loaded cache.
	ModeIncremental Mode = "incremental"
	// ModeFull discards the loaded cache before discovering.
	ModeFull Mode = "full"
)

// State is the orchestrator's position in the cycle state machine.
type State string

const (
	StateIdle                    State = "Idle"
	StateDiscovering             State = "Discovering"
	StateDiffingCache            State = "DiffingCache"
	StatePropagatingInvalidation State = "PropagatingInvalidation"
	StateDispatching             State = "Dispatching"
	StateCollecting              State = "Collecting"
	StateRecomputingAggregates   State = "RecomputingAggregates"
	StateCommitting              State = "Committing"
	// StateFailed is terminal and reachable only from cycle-fatal errors,
	// never from per-artifact failures.
	StateFailed State = "Failed"
)

// maxAggregatePasses caps the aggregate-recompute fixed point so cyclic
// aggregate dependencies cannot loop indefinitely.
const maxAggregatePasses = 4

// Failure records one per-artifact error for the cycle summary.
type Failure struct {
	Output domain.InternedString
	Err    error
}

// Summary is what a completed cycle reports to the driver.
type Summary struct {
	Rebuilt int
	Reused  int
	Failed  int
	Elapsed time.Duration

	Failures []Failure

	FragmentHits   int
	FragmentMisses int
}

// Orchestrator executes build cycles. All cross-cycle state lives in the
// cache store; the orchestrator itself only tracks its state-machine
// position.
type Orchestrator struct {
	cfg      *domain.Config
	walker   ports.SourceWalker
	fp       ports.Fingerprinter
	store    ports.CacheStore
	sched    *scheduler.Scheduler
	renderer ports.Renderer
	log      ports.Logger
	tel      ports.Telemetry

	mu    sync.Mutex
	state State
}

// New creates an Orchestrator over the given collaborators.
func New(
	cfg *domain.Config,
	walker ports.SourceWalker,
	fp ports.Fingerprinter,
	store ports.CacheStore,
	sched *scheduler.Scheduler,
	renderer ports.Renderer,
	log ports.Logger,
	tel ports.Telemetry,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		walker:   walker,
		fp:       fp,
		store:    store,
		sched:    sched,
		renderer: renderer,
		log:      log,
		tel:      tel,
		state:    StateIdle,
	}
}

// State returns the current state-machine position.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// enterPhase moves the state machine and opens a telemetry vertex for the
// phase.
func (o *Orchestrator) enterPhase(ctx context.Context, s State) ports.Vertex {
	o.setState(s)
	_, vtx := o.tel.Record(ctx, string(s))
	return vtx
}

// cycleState is the working set of one RunCycle invocation. It never
// outlives the cycle.
type cycleState struct {
	snapshot *domain.Snapshot // mutated only between phases, on this goroutine
	sources  map[domain.InternedString]domain.SourceArtifact
	changes  *domain.ChangeSet
	plan     []plannedOutput
	dirty    map[domain.InternedString]struct{}
	full     bool
	forceAll bool

	fragments *FragmentCache

	rebuilt  int
	failures []Failure
}

// RunCycle executes one build cycle and reports its summary. Per-artifact
// errors are collected into the summary; the returned error is non-nil only
// for cycle-fatal conditions (config, commit, cancellation).
func (o *Orchestrator) RunCycle(ctx context.Context, mode Mode) (Summary, error) {
	start := time.Now()
	cs := &cycleState{
		dirty:     make(map[domain.InternedString]struct{}),
		fragments: NewFragmentCache(),
		full:      mode == ModeFull,
	}

	steps := []func(context.Context, *cycleState) error{
		o.discover,
		o.diffCache,
		o.propagateInvalidation,
		o.dispatchDirty,
		o.recomputeAggregates,
		o.commit,
	}
	for _, step := range steps {
		if err := step(ctx, cs); err != nil {
			o.setState(StateFailed)
			return o.summarize(cs, start), err
		}
	}

	o.setState(StateIdle)
	sum := o.summarize(cs, start)
	o.log.Info("cycle complete",
		"rebuilt", sum.Rebuilt,
		"reused", sum.Reused,
		"failed", sum.Failed,
		"elapsed", sum.Elapsed)
	return sum, nil
}

func (o *Orchestrator) summarize(cs *cycleState, start time.Time) Summary {
	sum := Summary{
		Rebuilt:  cs.rebuilt,
		Failed:   len(cs.failures),
		Failures: cs.failures,
		Elapsed:  time.Since(start),
	}
	if cs.snapshot != nil {
		sum.Reused = max(0, len(cs.snapshot.Outputs)-sum.Rebuilt-sum.Failed)
	}
	if !o.cfg.Fast && cs.fragments != nil {
		sum.FragmentHits, sum.FragmentMisses = cs.fragments.Stats()
	}
	return sum
}

// discover loads the cache, walks the source tree, fingerprints everything,
// and computes the change set. Unreadable files become per-artifact
// discovery failures; the walk continues without them.
func (o *Orchestrator) discover(ctx context.Context, cs *cycleState) error {
	vtx := o.enterPhase(ctx, StateDiscovering)
	defer func() { vtx.Done(nil) }()

	prev, err := o.store.Load()
	if err != nil {
		if !errors.Is(err, domain.ErrCacheLoad) {
			return err
		}
		o.log.Warn("cache unreadable, rebuilding from scratch", "error", err)
	}
	if cs.full {
		prev = domain.NewSnapshot()
	}
	cs.snapshot = prev.Clone()

	discovered, err := o.walker.Walk()
	if err != nil {
		return err
	}

	cs.sources = make(map[domain.InternedString]domain.SourceArtifact, len(discovered))
	for _, d := range discovered {
		if err := ctx.Err(); err != nil {
			return err
		}
		hash, err := o.fp.Fingerprint(d.Path)
		if err != nil {
			cs.failures = append(cs.failures, Failure{Output: d.ID, Err: err})
			// An unreadable file is not a removed one. Carry the previous
			// record forward so its output survives until the file can be
			// read again.
			if rec, ok := prev.Sources[d.ID]; ok {
				cs.sources[d.ID] = domain.SourceArtifact{
					ID:   d.ID,
					Kind: d.Kind,
					Hash: rec.Hash,
					Path: d.Path,
				}
			}
			continue
		}
		cs.sources[d.ID] = domain.SourceArtifact{
			ID:   d.ID,
			Kind: d.Kind,
			Hash: hash,
			Path: d.Path,
		}
	}

	cs.changes = diffSources(prev, cs.sources)
	o.log.Info("discovery complete",
		"sources", len(cs.sources),
		"added", len(cs.changes.Added),
		"modified", len(cs.changes.Modified),
		"removed", len(cs.changes.Removed),
		"config_changed", cs.changes.ConfigChanged)
	return nil
}

// diffSources computes the change set between the cached source records and
// the freshly discovered tree.
func diffSources(prev *domain.Snapshot, cur map[domain.InternedString]domain.SourceArtifact) *domain.ChangeSet {
	cs := &domain.ChangeSet{}
	for id, src := range cur {
		rec, ok := prev.Sources[id]
		switch {
		case !ok:
			cs.Added = append(cs.Added, id)
		case rec.Hash != src.Hash:
			cs.Modified = append(cs.Modified, id)
		default:
			continue
		}
		if src.Kind == domain.SourceConfig && ok {
			cs.ConfigChanged = true
		}
	}
	for id, rec := range prev.Sources {
		if _, ok := cur[id]; !ok {
			cs.Removed = append(cs.Removed, id)
			if rec.Kind == domain.SourceConfig {
				cs.ConfigChanged = true
			}
		}
	}
	return cs
}

// diffCache marks the dirty set: everything on config change or full mode,
// otherwise the reverse-reachable closure of the change set plus any output
// whose recorded dependency set no longer matches current source hashes.
func (o *Orchestrator) diffCache(ctx context.Context, cs *cycleState) error {
	vtx := o.enterPhase(ctx, StateDiffingCache)
	defer func() { vtx.Done(nil) }()

	cs.plan = o.planOutputs(cs.sources)

	if cs.full || cs.changes.ConfigChanged {
		cs.forceAll = true
		for _, p := range cs.plan {
			cs.dirty[p.id] = struct{}{}
		}
		// Cached aggregates are rebuilt as well; the aggregate pass plans
		// them from the rendered page set.
		return nil
	}

	graph := domain.BuildGraph(cs.snapshot)
	for id := range graph.InvalidatedBy(cs.changes) {
		cs.dirty[id] = struct{}{}
	}

	// A brand-new template, partial, or data file cannot appear in any
	// recorded dependency set, yet the renderer may consult it now. The
	// dependency-set invariant includes "the set has not grown", so
	// over-approximate: such an addition dirties every page.
	if addedRenderInput(cs.changes, cs.sources) {
		for _, p := range cs.plan {
			cs.dirty[p.id] = struct{}{}
		}
		return nil
	}

	for _, p := range cs.plan {
		cached, ok := cs.snapshot.Outputs[p.id]
		if !ok {
			cs.dirty[p.id] = struct{}{}
			continue
		}
		if o.depsStale(cs, cached.Deps) {
			cs.dirty[p.id] = struct{}{}
		}
	}
	return nil
}

func addedRenderInput(changes *domain.ChangeSet, sources map[domain.InternedString]domain.SourceArtifact) bool {
	for _, id := range changes.Added {
		switch sources[id].Kind {
		case domain.SourceTemplate, domain.SourcePartial, domain.SourceData:
			return true
		}
	}
	return false
}

// depsStale reports whether any recorded dependency no longer matches the
// current source set. Virtual dependencies are checked against the cached
// aggregate output hash; the aggregate pass re-checks them after rendering.
func (o *Orchestrator) depsStale(cs *cycleState, deps []domain.Dependency) bool {
	for _, dep := range deps {
		if dep.Virtual {
			agg, ok := cs.snapshot.Outputs[dep.On]
			if !ok || agg.Hash != dep.Hash {
				return true
			}
			continue
		}
		src, ok := cs.sources[dep.On]
		if !ok || src.Hash != dep.Hash {
			return true
		}
	}
	return false
}

// propagateInvalidation runs the fixed point: an invalidated artifact that
// is itself a dependency of another pulls its dependents in, until the dirty
// set stops growing. Bounded by the total edge count.
func (o *Orchestrator) propagateInvalidation(ctx context.Context, cs *cycleState) error {
	vtx := o.enterPhase(ctx, StatePropagatingInvalidation)
	defer func() { vtx.Done(nil) }()

	graph := domain.BuildGraph(cs.snapshot)
	queue := make([]domain.InternedString, 0, len(cs.dirty))
	for id := range cs.dirty {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range graph.Dependents(cur) {
			if _, seen := cs.dirty[dep]; seen {
				continue
			}
			cs.dirty[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return nil
}

// dispatchDirty renders every dirty non-aggregate output and merges the
// results. Dirty outputs no longer in the plan are stale: their records and
// files are dropped instead.
func (o *Orchestrator) dispatchDirty(ctx context.Context, cs *cycleState) error {
	vtx := o.enterPhase(ctx, StateDispatching)
	defer func() { vtx.Done(nil) }()

	o.pruneStaleOutputs(cs)

	var requests []ports.RenderRequest
	for _, p := range cs.plan {
		if _, ok := cs.dirty[p.id]; !ok {
			continue
		}
		requests = append(requests, ports.RenderRequest{
			Output:    p.id,
			Source:    cs.sources[p.source],
			Sources:   cs.sources,
			Fragments: cs.fragments,
		})
	}

	records, err := o.dispatch(ctx, scheduler.PhaseRender, requests)
	if err != nil {
		return err
	}

	return o.collect(ctx, cs, records)
}

// pruneStaleOutputs removes cached outputs whose source disappeared or whose
// identity the current plan no longer produces.
func (o *Orchestrator) pruneStaleOutputs(cs *cycleState) {
	planned := make(map[domain.InternedString]struct{}, len(cs.plan))
	for _, p := range cs.plan {
		planned[p.id] = struct{}{}
	}
	for id, out := range cs.snapshot.Outputs {
		if out.IsAggregate() {
			continue // aggregate liveness is decided by the aggregate pass
		}
		if _, ok := planned[id]; !ok {
			delete(cs.snapshot.Outputs, id)
			delete(cs.dirty, id)
			o.removeOutput(id)
		}
	}
}

// collect merges worker records into the snapshot, serially. A failed
// artifact keeps its previous record and on-disk file so a broken page does
// not vanish; it stays stale and is retried next cycle.
func (o *Orchestrator) collect(ctx context.Context, cs *cycleState, records []renderRecord) error {
	o.setState(StateCollecting)

	for _, rec := range records {
		if rec.err != nil {
			cs.failures = append(cs.failures, Failure{Output: rec.output.ID, Err: rec.err})
			continue
		}
		if len(rec.body) > 0 {
			if err := o.writeOutput(rec.output.ID, rec.body); err != nil {
				cs.failures = append(cs.failures, Failure{Output: rec.output.ID, Err: err})
				continue
			}
		}
		cs.snapshot.Outputs[rec.output.ID] = rec.output
		cs.rebuilt++
	}
	return ctx.Err()
}

// recomputeAggregates re-evaluates every membership predicate against the
// rendered page set and re-renders aggregates whose membership or member
// hashes changed, then re-renders pages holding a stale virtual dependency.
// The loop is capped so cyclic aggregate dependencies terminate.
func (o *Orchestrator) recomputeAggregates(ctx context.Context, cs *cycleState) error {
	vtx := o.enterPhase(ctx, StateRecomputingAggregates)
	defer func() { vtx.Done(nil) }()

	for pass := 0; pass < maxAggregatePasses; pass++ {
		requests := o.staleAggregateRequests(cs)
		cs.forceAll = false
		if len(requests) == 0 {
			return nil
		}

		records, err := o.dispatch(ctx, scheduler.PhasePostProcess, requests)
		if err != nil {
			return err
		}
		if err := o.collect(ctx, cs, records); err != nil {
			return err
		}
		o.setState(StateRecomputingAggregates)

		// One extra page pass for outputs that depend on an aggregate
		// whose hash just moved.
		pageRequests := o.staleVirtualDependents(cs)
		if len(pageRequests) > 0 {
			records, err := o.dispatch(ctx, scheduler.PhaseRender, pageRequests)
			if err != nil {
				return err
			}
			if err := o.collect(ctx, cs, records); err != nil {
				return err
			}
			o.setState(StateRecomputingAggregates)
		}
	}

	o.log.Warn("aggregate recomputation hit the pass cap", "passes", maxAggregatePasses)
	return nil
}

// currentPages is the page set membership predicates run against: every
// content-backed output in the snapshot. Asset copies are outputs too but
// never aggregate members.
func (o *Orchestrator) currentPages(cs *cycleState) []domain.PageInfo {
	var pages []domain.PageInfo
	for _, out := range cs.snapshot.Outputs {
		if out.IsAggregate() {
			continue
		}
		if src, ok := cs.sources[out.Source]; !ok || src.Kind != domain.SourceContent {
			continue
		}
		pages = append(pages, domain.PageInfo{Source: out.Source, Tags: out.Tags})
	}
	return pages
}

// staleAggregateRequests plans the aggregates for the current page set and
// returns requests for the ones that need rendering.
func (o *Orchestrator) staleAggregateRequests(cs *cycleState) []ports.RenderRequest {
	pages := o.currentPages(cs)
	planned := o.planAggregates(pages)

	live := make(map[domain.InternedString]struct{}, len(planned))
	var requests []ports.RenderRequest
	for _, p := range planned {
		live[p.id] = struct{}{}

		desc := *p.aggregate
		desc.Members = p.aggregate.Evaluate(pages)

		cached, ok := cs.snapshot.Outputs[p.id]
		fresh := !cs.forceAll && ok &&
			cached.Aggregate != nil &&
			cached.Aggregate.SameMembership(desc.Members) &&
			!o.depsStale(cs, cached.Deps)
		if fresh {
			continue
		}

		requests = append(requests, ports.RenderRequest{
			Output:    p.id,
			Aggregate: &desc,
			Sources:   cs.sources,
			Fragments: cs.fragments,
		})
	}

	// Aggregates whose predicate no longer yields an output (last page of
	// a tag removed) disappear with their files.
	for id, out := range cs.snapshot.Outputs {
		if !out.IsAggregate() {
			continue
		}
		if _, ok := live[id]; !ok {
			delete(cs.snapshot.Outputs, id)
			o.removeOutput(id)
		}
	}
	return requests
}

// staleVirtualDependents finds planned pages whose recorded virtual
// dependencies no longer match the aggregate hashes just collected.
func (o *Orchestrator) staleVirtualDependents(cs *cycleState) []ports.RenderRequest {
	var requests []ports.RenderRequest
	for _, p := range cs.plan {
		cached, ok := cs.snapshot.Outputs[p.id]
		if !ok {
			continue
		}
		stale := false
		for _, dep := range cached.Deps {
			if !dep.Virtual {
				continue
			}
			agg, ok := cs.snapshot.Outputs[dep.On]
			if !ok || agg.Hash != dep.Hash {
				stale = true
				break
			}
		}
		if stale {
			requests = append(requests, ports.RenderRequest{
				Output:    p.id,
				Source:    cs.sources[p.source],
				Sources:   cs.sources,
				Fragments: cs.fragments,
			})
		}
	}
	return requests
}

// commit merges the cycle's source records into the snapshot and writes it
// atomically. Reached only after all dispatched work completed, so cache
// and filesystem state stay mutually consistent even if the process dies
// right before or after: the rename either happened or it did not.
func (o *Orchestrator) commit(ctx context.Context, cs *cycleState) error {
	vtx := o.enterPhase(ctx, StateCommitting)

	if err := ctx.Err(); err != nil {
		vtx.Done(err)
		return err
	}

	cs.snapshot.Sources = make(map[domain.InternedString]domain.SourceRecord, len(cs.sources))
	for id, src := range cs.sources {
		cs.snapshot.Sources[id] = domain.SourceRecord{Kind: src.Kind, Hash: src.Hash}
	}

	if err := o.store.Commit(cs.snapshot); err != nil {
		vtx.Done(err)
		return err
	}
	vtx.Done(nil)
	return nil
}
