package domain

// Graph is the dependency graph between source artifacts and the outputs
// built from them. Edges point from a consumed artifact (source file or
// virtual aggregate) to the outputs that consumed it, so invalidation is a
// forward walk over reverse edges.
//
// Nodes are arena-indexed: identities map to slice offsets and the walk uses
// a visited slice, bounding work to O(edges) even when aggregates reference
// pages that reference aggregates.
type Graph struct {
	index      map[InternedString]int
	ids        []InternedString
	dependents [][]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[InternedString]int)}
}

// BuildGraph constructs the graph from a snapshot's recorded dependency
// sets. It is rebuilt from scratch each cycle; the snapshot is the source of
// truth, the graph an index over it.
func BuildGraph(snap *Snapshot) *Graph {
	g := NewGraph()
	for id, out := range snap.Outputs {
		for _, dep := range out.Deps {
			g.RecordDependency(id, dep.On)
		}
	}
	return g
}

// RecordDependency appends an edge stating that output was built from
// consumed. Duplicate edges are harmless: the walk's visited set makes them
// idempotent.
func (g *Graph) RecordDependency(output, consumed InternedString) {
	from := g.node(consumed)
	to := g.node(output)
	g.dependents[from] = append(g.dependents[from], to)
}

func (g *Graph) node(id InternedString) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	i := len(g.ids)
	g.index[id] = i
	g.ids = append(g.ids, id)
	g.dependents = append(g.dependents, nil)
	return i
}

// Dependents returns the direct consumers of the given artifact.
func (g *Graph) Dependents(id InternedString) []InternedString {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]InternedString, 0, len(g.dependents[i]))
	for _, d := range g.dependents[i] {
		out = append(out, g.ids[d])
	}
	return out
}

// InvalidatedBy returns every artifact transitively reachable from the
// change set along reverse edges: the outputs that can no longer be
// trusted. Breadth-first with an explicit queue and visited slice; never
// recursive.
func (g *Graph) InvalidatedBy(cs *ChangeSet) map[InternedString]struct{} {
	dirty := make(map[InternedString]struct{})
	visited := make([]bool, len(g.ids))
	var queue []int

	for _, id := range cs.Touched() {
		if i, ok := g.index[id]; ok && !visited[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.dependents[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
			dirty[g.ids[next]] = struct{}{}
		}
	}

	return dirty
}

// Len returns the number of nodes currently in the arena.
func (g *Graph) Len() int {
	return len(g.ids)
}
