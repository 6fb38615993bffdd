package ports

import (
	"context"

	"github.com/lbliii/bengal/internal/core/domain"
)

// RenderRequest carries everything a renderer needs for one output. All
// fields are read-only views of the current cycle; workers share no mutable
// state through the request.
type RenderRequest struct {
	// Output is the output path relative to the output root.
	Output domain.InternedString

	// Source is the primary content source. Zero for virtual aggregates.
	Source domain.SourceArtifact

	// Aggregate describes the membership predicate for aggregate outputs,
	// with Members already evaluated against the current page set.
	Aggregate *domain.AggregateDescriptor

	// Sources is the current cycle's source set keyed by identity, for
	// resolving templates, partials, and data files.
	Sources map[domain.InternedString]domain.SourceArtifact

	// Fragments is the cycle-scoped shared fragment cache. It is the only
	// structure workers touch concurrently; it guards itself.
	Fragments FragmentCache
}

// RenderResult is a worker's immutable record for one output. Results are
// merged serially after the concurrent phase completes.
type RenderResult struct {
	// Body is the rendered output. Empty when the renderer streamed the
	// body straight to disk (memory-optimized mode); Hash is then already
	// set.
	Body []byte

	// Hash is the rendered-content fingerprint, set only when Body is not.
	Hash domain.Hash

	// Deps is every source the renderer consulted, in consultation order.
	// Under-reporting here is a correctness bug on the renderer's side:
	// the engine trusts this set and a missing entry means a stale output
	// survives a relevant change.
	Deps []domain.Dependency

	// Tags are the page's tags, fed into tag-index membership predicates.
	Tags []string
}

// Renderer turns one source artifact (or aggregate) into output bytes. It is
// an external collaborator: the engine imposes no per-render timeout and
// surfaces a hung renderer only through the caller's context ceiling.
//
//go:generate go run go.uber.org/mock/mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// FragmentCache is a content-addressed cache for expensive repeated render
// fragments shared across pages within one cycle.
type FragmentCache interface {
	// GetOrCompute returns the cached bytes for key, computing and storing
	// them on a miss. compute may be called by at most one caller per key.
	GetOrCompute(key domain.Hash, compute func() ([]byte, error)) ([]byte, error)
}
