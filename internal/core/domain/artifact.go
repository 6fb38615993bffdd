// Package domain contains the core domain models for the incremental build engine.
package domain

import "time"

// Hash is a content fingerprint, formatted as a fixed-width hex string.
// An empty Hash means "never fingerprinted".
type Hash string

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool {
	return h == ""
}

// SourceKind classifies a source artifact by its role in rendering.
type SourceKind string

const (
	// SourceContent is a content file (markdown page).
	SourceContent SourceKind = "content"
	// SourceTemplate is a page template.
	SourceTemplate SourceKind = "template"
	// SourcePartial is a template fragment included by other templates.
	SourcePartial SourceKind = "partial"
	// SourceData is a structured data file consumed during rendering.
	SourceData SourceKind = "data"
	// SourceConfig is the site configuration file. A change to it
	// invalidates every output.
	SourceConfig SourceKind = "config"
	// SourceAsset is a static asset copied into the output tree.
	SourceAsset SourceKind = "asset"
)

// SourceArtifact is any input file the build can depend on.
type SourceArtifact struct {
	// ID is the stable logical identity: the path relative to the build root.
	ID InternedString

	Kind SourceKind

	// Hash is the content fingerprint of the file bytes.
	Hash Hash

	// Path is the absolute location on disk.
	Path string

	// ModTime is advisory only. Change detection is by Hash, never by
	// mtime, so touching a file without editing it triggers no rebuild.
	ModTime time.Time
}

// Dependency is one entry of an output's dependency set: a source (or
// virtual aggregate) the renderer consulted, with its hash at render time.
type Dependency struct {
	On   InternedString `json:"on"`
	Hash Hash           `json:"hash"`

	// Virtual marks a dependency on another output artifact (a virtual
	// aggregate) rather than on a source file.
	Virtual bool `json:"virtual,omitempty"`
}

// OutputArtifact is a file the build produces, together with everything
// needed to decide whether it can be reused: the rendered-content hash and
// the ordered dependency set recorded at render time.
//
// An output is reusable iff every dependency entry still matches the current
// source hash and, for virtual aggregates, the membership of its predicate
// is unchanged.
type OutputArtifact struct {
	// ID is the output path relative to the output root.
	ID InternedString `json:"id"`

	// Source is the primary content source, empty for virtual aggregates.
	Source InternedString `json:"source,omitempty"`

	// Hash is the fingerprint of the rendered bytes.
	Hash Hash `json:"hash"`

	// Deps is the dependency set, in the order the renderer reported it.
	Deps []Dependency `json:"deps,omitempty"`

	// Aggregate describes the membership predicate for virtual aggregates.
	Aggregate *AggregateDescriptor `json:"aggregate,omitempty"`

	// Tags are the page's tags as reported by the renderer. They feed the
	// tag-index membership predicates; they are not part of the dependency
	// set themselves.
	Tags []string `json:"tags,omitempty"`

	RenderedAt time.Time `json:"rendered_at,omitzero"`
}

// IsAggregate reports whether the output is a virtual aggregate.
func (o *OutputArtifact) IsAggregate() bool {
	return o.Aggregate != nil
}
