package orchestrator_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lbliii/bengal/internal/adapters/cache"
	"github.com/lbliii/bengal/internal/adapters/fs"
	"github.com/lbliii/bengal/internal/adapters/logger"
	"github.com/lbliii/bengal/internal/adapters/telemetry"
	"github.com/lbliii/bengal/internal/core/domain"
	"github.com/lbliii/bengal/internal/core/ports"
	"github.com/lbliii/bengal/internal/core/ports/mocks"
	"github.com/lbliii/bengal/internal/engine/orchestrator"
	"github.com/lbliii/bengal/internal/engine/scheduler"
)

// stubRenderer renders pages as their raw source bytes and aggregates as
// their member lists. Its dependency reporting is configurable so the tests
// can exercise both honest and under-reporting renderers.
type stubRenderer struct {
	fp *fs.Fingerprinter

	mu           sync.Mutex
	renders      []string
	failOn       map[string]error
	tags         map[string][]string
	reportShared bool
	virtualDeps  bool
	useFragments bool
	sitemapHash  domain.Hash
}

func newStubRenderer() *stubRenderer {
	return &stubRenderer{
		fp:     fs.NewFingerprinter(),
		failOn: map[string]error{},
		tags:   map[string][]string{},
	}
}

func (r *stubRenderer) renderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.renders)
}

func (r *stubRenderer) Render(_ context.Context, req ports.RenderRequest) (ports.RenderResult, error) {
	r.mu.Lock()
	r.renders = append(r.renders, req.Output.String())
	fail := r.failOn[req.Output.String()]
	r.mu.Unlock()
	if fail != nil {
		return ports.RenderResult{}, fail
	}

	if req.Aggregate != nil {
		var body bytes.Buffer
		for _, m := range req.Aggregate.Members {
			body.WriteString(m.String() + "\n")
		}
		if req.Aggregate.Kind == domain.AggregateSitemap {
			r.mu.Lock()
			r.sitemapHash = r.fp.FingerprintBytes(body.Bytes())
			r.mu.Unlock()
		}
		return ports.RenderResult{Body: body.Bytes()}, nil
	}

	body, err := os.ReadFile(req.Source.Path)
	if err != nil {
		return ports.RenderResult{}, err
	}

	if r.useFragments {
		nav, err := req.Fragments.GetOrCompute("nav-fragment", func() ([]byte, error) {
			return []byte("<nav/>"), nil
		})
		if err != nil {
			return ports.RenderResult{}, err
		}
		body = append(body, nav...)
	}

	deps := []domain.Dependency{{On: req.Source.ID, Hash: req.Source.Hash}}
	if r.reportShared {
		if tmpl, ok := req.Sources[domain.NewInternedString("templates/page.html")]; ok {
			deps = append(deps, domain.Dependency{On: tmpl.ID, Hash: tmpl.Hash})
		}
	}
	if r.virtualDeps {
		r.mu.Lock()
		h := r.sitemapHash
		r.mu.Unlock()
		deps = append(deps, domain.Dependency{
			On:      domain.NewInternedString("sitemap.xml"),
			Hash:    h,
			Virtual: true,
		})
	}

	r.mu.Lock()
	tags := r.tags[req.Source.ID.String()]
	r.mu.Unlock()
	return ports.RenderResult{Body: body, Deps: deps, Tags: tags}, nil
}

// site is a throwaway build root for one test.
type site struct {
	root string
	cfg  *domain.Config
}

func newSite(t *testing.T) *site {
	t.Helper()
	root := t.TempDir()
	s := &site{
		root: root,
		cfg: &domain.Config{
			Root:         root,
			ContentDir:   "content",
			TemplatesDir: "templates",
			DataDir:      "data",
			AssetsDir:    "assets",
			OutputDir:    "public",
			Fast:         true,
		},
	}
	s.write(t, "bengal.yaml", "title: Test\n")
	return s
}

func (s *site) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (s *site) remove(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(s.root, filepath.FromSlash(rel))))
}

func (s *site) outputPath(rel string) string {
	return filepath.Join(s.root, "public", filepath.FromSlash(rel))
}

func (s *site) requireOutput(t *testing.T, rel string) {
	t.Helper()
	_, err := os.Stat(s.outputPath(rel))
	require.NoError(t, err, "expected output %s", rel)
}

func (s *site) requireNoOutput(t *testing.T, rel string) {
	t.Helper()
	_, err := os.Stat(s.outputPath(rel))
	require.True(t, os.IsNotExist(err), "expected no output %s", rel)
}

func (s *site) newStore(t *testing.T) *cache.Store {
	t.Helper()
	return cache.NewStore(filepath.Join(s.root, ".bengal", "cache.json"), false)
}

// newOrchestrator wires an orchestrator with real fs and cache adapters and
// a sequential scheduler, so rebuild counts are deterministic.
func (s *site) newOrchestrator(t *testing.T, r ports.Renderer, store ports.CacheStore) *orchestrator.Orchestrator {
	t.Helper()
	log := logger.New()
	log.SetOutput(io.Discard)
	return orchestrator.New(
		s.cfg,
		fs.NewWalker(s.cfg),
		fs.NewFingerprinter(),
		store,
		scheduler.New(nil, true),
		r,
		log,
		telemetry.NewNoop(),
	)
}

func (s *site) runCycle(t *testing.T, r ports.Renderer) orchestrator.Summary {
	t.Helper()
	o := s.newOrchestrator(t, r, s.newStore(t))
	sum, err := o.RunCycle(t.Context(), orchestrator.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, orchestrator.StateIdle, o.State())
	return sum
}

func threePageSite(t *testing.T) *site {
	t.Helper()
	s := newSite(t)
	s.write(t, "content/index.md", "# Home")
	s.write(t, "content/about.md", "# About")
	s.write(t, "content/docs/setup.md", "# Setup")
	return s
}

func TestFirstCycleBuildsEverything(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()

	sum := s.runCycle(t, r)

	// Three pages plus the sitemap.
	require.Equal(t, 4, sum.Rebuilt)
	require.Zero(t, sum.Failed)
	require.Zero(t, sum.Reused)

	s.requireOutput(t, "index.html")
	s.requireOutput(t, "about/index.html")
	s.requireOutput(t, "docs/setup/index.html")
	s.requireOutput(t, "sitemap.xml")
}

func TestSecondCycleIsIdempotent(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()

	s.runCycle(t, r)
	sum := s.runCycle(t, r)

	require.Zero(t, sum.Rebuilt)
	require.Zero(t, sum.Failed)
	require.Equal(t, 4, sum.Reused)
}

func TestEditOnePageRebuildsExactlyThatPage(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	s.runCycle(t, r)

	s.write(t, "content/about.md", "# About, revised")
	sum := s.runCycle(t, r)

	require.Equal(t, 1, sum.Rebuilt)
	require.Equal(t, 3, sum.Reused)

	body, err := os.ReadFile(s.outputPath("about/index.html"))
	require.NoError(t, err)
	require.Equal(t, "# About, revised", string(body))
}

func TestTouchWithoutEditRebuildsNothing(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	s.runCycle(t, r)

	// Rewrite identical bytes: new mtime, same content hash.
	s.write(t, "content/about.md", "# About")
	sum := s.runCycle(t, r)

	require.Zero(t, sum.Rebuilt)
}

func TestSharedTemplateEditRebuildsItsConsumers(t *testing.T) {
	s := threePageSite(t)
	s.write(t, "templates/page.html", "v1")
	r := newStubRenderer()
	r.reportShared = true
	s.runCycle(t, r)

	s.write(t, "templates/page.html", "v2")
	sum := s.runCycle(t, r)

	// All three pages consume the template; the sitemap does not.
	require.Equal(t, 3, sum.Rebuilt)
	require.Equal(t, 1, sum.Reused)
}

func TestAddedTemplateDirtiesAllPages(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	s.runCycle(t, r)

	// A new render input cannot appear in any recorded dependency set, so
	// every page is conservatively rebuilt.
	s.write(t, "templates/footer.html", "<footer/>")
	sum := s.runCycle(t, r)

	require.Equal(t, 3, sum.Rebuilt)
}

func TestConfigChangeRebuildsEverything(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	s.runCycle(t, r)

	s.write(t, "bengal.yaml", "title: Renamed\n")
	sum := s.runCycle(t, r)

	// Pages and the sitemap alike.
	require.Equal(t, 4, sum.Rebuilt)
	require.Zero(t, sum.Reused)
}

func TestFullModeIgnoresCache(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	s.runCycle(t, r)

	o := s.newOrchestrator(t, r, s.newStore(t))
	sum, err := o.RunCycle(t.Context(), orchestrator.ModeFull)
	require.NoError(t, err)
	require.Equal(t, 4, sum.Rebuilt)
}

func TestRemovedPageIsPruned(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	s.runCycle(t, r)

	s.remove(t, "content/about.md")
	sum := s.runCycle(t, r)

	// Only the sitemap re-renders; the page record and file disappear.
	require.Equal(t, 1, sum.Rebuilt)
	s.requireNoOutput(t, "about/index.html")

	store := s.newStore(t)
	_, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, store.Get(domain.NewInternedString("about/index.html")))
}

func TestPartialFailureIsolatesTheFailedArtifact(t *testing.T) {
	s := threePageSite(t)

	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	stub := newStubRenderer()
	boom := domain.ErrRender
	renderer.EXPECT().Render(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req ports.RenderRequest) (ports.RenderResult, error) {
			if req.Output.String() == "about/index.html" {
				return ports.RenderResult{}, boom
			}
			return stub.Render(ctx, req)
		},
	).AnyTimes()

	o := s.newOrchestrator(t, renderer, s.newStore(t))
	sum, err := o.RunCycle(t.Context(), orchestrator.ModeIncremental)

	// Per-artifact failures are not cycle-fatal.
	require.NoError(t, err)
	require.Equal(t, orchestrator.StateIdle, o.State())
	require.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	require.Equal(t, "about/index.html", sum.Failures[0].Output.String())
	require.ErrorIs(t, sum.Failures[0].Err, domain.ErrRender)
	require.Equal(t, 3, sum.Rebuilt)

	s.requireOutput(t, "index.html")
	s.requireOutput(t, "docs/setup/index.html")
	s.requireNoOutput(t, "about/index.html")

	// Next cycle retries the failed artifact and converges.
	stub2 := newStubRenderer()
	sum = s.runCycle(t, stub2)
	require.Zero(t, sum.Failed)
	// The recovered page plus the sitemap, whose membership grew.
	require.Equal(t, 2, sum.Rebuilt)
	s.requireOutput(t, "about/index.html")

	sum = s.runCycle(t, stub2)
	require.Zero(t, sum.Rebuilt)
}

func TestCommitFailureIsCycleFatalAndRecoverable(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()

	ctrl := gomock.NewController(t)
	badStore := mocks.NewMockCacheStore(ctrl)
	badStore.EXPECT().Load().Return(domain.NewSnapshot(), nil)
	badStore.EXPECT().Commit(gomock.Any()).Return(domain.ErrCacheCommit)

	o := s.newOrchestrator(t, r, badStore)
	_, err := o.RunCycle(t.Context(), orchestrator.ModeIncremental)
	require.ErrorIs(t, err, domain.ErrCacheCommit)
	require.Equal(t, orchestrator.StateFailed, o.State())

	// Outputs were written but the cache was not. The next cycle with a
	// working store rebuilds and converges to the same state an
	// uninterrupted run would have reached.
	sum := s.runCycle(t, r)
	require.Equal(t, 4, sum.Rebuilt)

	sum = s.runCycle(t, r)
	require.Zero(t, sum.Rebuilt)
}

func TestCancellationCommitsNothing(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	o := s.newOrchestrator(t, r, s.newStore(t))
	_, err := o.RunCycle(ctx, orchestrator.ModeIncremental)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, orchestrator.StateFailed, o.State())

	_, statErr := os.Stat(filepath.Join(s.root, ".bengal", "cache.json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestUnderReportingRendererLeavesStaleOutput(t *testing.T) {
	s := threePageSite(t)
	s.write(t, "templates/page.html", "v1")
	r := newStubRenderer()
	// reportShared stays false: the renderer consults the template but
	// never reports it.
	s.runCycle(t, r)

	s.write(t, "templates/page.html", "v2")
	sum := s.runCycle(t, r)

	// The engine trusts the reported dependency sets, so nothing rebuilds
	// and the stale pages survive.
	require.Zero(t, sum.Rebuilt)
}

func TestTagIndexFollowsMembership(t *testing.T) {
	s := newSite(t)
	s.write(t, "content/a.md", "# A")
	s.write(t, "content/b.md", "# B")

	r := newStubRenderer()
	r.tags["content/a.md"] = []string{"go"}
	r.tags["content/b.md"] = []string{"go"}

	s.runCycle(t, r)
	s.requireOutput(t, "tags/go/index.html")

	// Dropping the tag from one page shrinks the membership; the index
	// re-renders.
	r.tags["content/b.md"] = nil
	s.write(t, "content/b.md", "# B, untagged")
	sum := s.runCycle(t, r)
	require.Equal(t, 2, sum.Rebuilt) // the edited page and the tag index

	// Dropping the last member removes the aggregate and its file.
	r.tags["content/a.md"] = nil
	s.write(t, "content/a.md", "# A, untagged")
	s.runCycle(t, r)
	s.requireNoOutput(t, "tags/go/index.html")

	store := s.newStore(t)
	_, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, store.Get(domain.NewInternedString("tags/go/index.html")))
}

func TestVirtualDependencyConverges(t *testing.T) {
	s := threePageSite(t)
	r := newStubRenderer()
	r.virtualDeps = true

	// First cycle: pages render before the sitemap exists, so their
	// recorded virtual hashes are stale and an extra page pass runs.
	sum := s.runCycle(t, r)
	require.Equal(t, 7, sum.Rebuilt) // 3 pages + sitemap + 3 re-renders

	// Converged: the recorded virtual hashes now match.
	sum = s.runCycle(t, r)
	require.Zero(t, sum.Rebuilt)
}

func TestFragmentCacheStatsInSummary(t *testing.T) {
	s := threePageSite(t)
	s.cfg.Fast = false
	r := newStubRenderer()
	r.useFragments = true

	sum := s.runCycle(t, r)
	require.Equal(t, 1, sum.FragmentMisses)
	require.Equal(t, 2, sum.FragmentHits)
}

func TestMemoryOptimizedStreamsOutputs(t *testing.T) {
	s := threePageSite(t)
	s.cfg.MemoryOptimized = true
	r := newStubRenderer()

	sum := s.runCycle(t, r)
	require.Equal(t, 4, sum.Rebuilt)
	s.requireOutput(t, "about/index.html")
	s.requireOutput(t, "sitemap.xml")
}

func TestParallelDispatchMatchesSequential(t *testing.T) {
	s := newSite(t)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		s.write(t, "content/"+name+".md", "# "+name)
	}
	r := newStubRenderer()

	log := logger.New()
	log.SetOutput(io.Discard)
	o := orchestrator.New(
		s.cfg,
		fs.NewWalker(s.cfg),
		fs.NewFingerprinter(),
		s.newStore(t),
		scheduler.New(map[string]domain.PhaseTuning{
			"render": {BreakEven: 2, SmallOptimal: 4, ContentionPoint: 4},
		}, false),
		r,
		log,
		telemetry.NewNoop(),
	)

	sum, err := o.RunCycle(t.Context(), orchestrator.ModeIncremental)
	require.NoError(t, err)
	require.Equal(t, 9, sum.Rebuilt) // 8 pages + sitemap
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		s.requireOutput(t, name+"/index.html")
	}
}

func TestFiftyPageScenario(t *testing.T) {
	s := newSite(t)
	s.write(t, "templates/page.html", "v1")
	for i := range 50 {
		s.write(t, fmt.Sprintf("content/p%02d.md", i), fmt.Sprintf("# Page %d", i))
	}
	r := newStubRenderer()
	r.reportShared = true

	sum := s.runCycle(t, r)
	require.Equal(t, 51, sum.Rebuilt) // 50 pages + sitemap

	// One edited page rebuilds exactly one page.
	s.write(t, "content/p07.md", "# Page 7, revised")
	sum = s.runCycle(t, r)
	require.Equal(t, 1, sum.Rebuilt)

	// The shared template rebuilds exactly its fifty consumers.
	s.write(t, "templates/page.html", "v2")
	sum = s.runCycle(t, r)
	require.Equal(t, 50, sum.Rebuilt)

	// A no-op cycle rebuilds nothing.
	sum = s.runCycle(t, r)
	require.Zero(t, sum.Rebuilt)
}

func TestAssetsAreCopiedAndTracked(t *testing.T) {
	s := newSite(t)
	s.write(t, "content/index.md", "# Home")
	s.write(t, "assets/css/site.css", "body{}")
	r := newStubRenderer()

	sum := s.runCycle(t, r)
	require.Equal(t, 3, sum.Rebuilt) // page, asset, sitemap
	s.requireOutput(t, "css/site.css")

	s.write(t, "assets/css/site.css", "body{margin:0}")
	sum = s.runCycle(t, r)
	require.Equal(t, 1, sum.Rebuilt)
}
