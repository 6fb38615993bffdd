package domain

import "maps"

// SnapshotSchema is the on-disk cache schema version. A loaded snapshot with
// a different stamp is discarded and the build degrades to a full rebuild.
const SnapshotSchema = 1

// SourceRecord is the persisted state of one source artifact.
type SourceRecord struct {
	Kind SourceKind `json:"kind"`
	Hash Hash       `json:"hash"`
}

// Snapshot is the persisted build state: every known source hash and every
// output's dependency set and rendered hash. It is loaded at cycle start,
// mutated only between phases on the orchestrator goroutine, and committed
// atomically after a successful cycle.
type Snapshot struct {
	Schema  int                               `json:"schema"`
	Sources map[InternedString]SourceRecord   `json:"sources"`
	Outputs map[InternedString]OutputArtifact `json:"outputs"`
}

// NewSnapshot returns an empty snapshot at the current schema version.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Schema:  SnapshotSchema,
		Sources: make(map[InternedString]SourceRecord),
		Outputs: make(map[InternedString]OutputArtifact),
	}
}

// Clone returns a shallow-value copy with fresh maps. Workers receive clones
// so the dispatch phase shares no mutable state with the orchestrator.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot()
	c.Schema = s.Schema
	maps.Copy(c.Sources, s.Sources)
	maps.Copy(c.Outputs, s.Outputs)
	return c
}
