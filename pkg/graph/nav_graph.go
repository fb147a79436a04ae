// Package graph holds the page navigation graph.
//
// Node IDs are assigned in insertion order, so sorting by ID gives page
// order. The gonum graph does not allow self edges; a page that navigates
// to itself is recorded as a self loop next to it.
package graph

import (
	"sort"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// NavGraph is a directed graph of pages with one edge per distinct resolved navigation
type NavGraph struct {
	graph     *simple.DirectedGraph
	ids       map[string]int64
	names     []string // indexed by node ID
	selfLoops map[string]bool
}

// NewNavGraph creates an empty navigation graph
func NewNavGraph() *NavGraph {
	return &NavGraph{
		graph:     simple.NewDirectedGraph(),
		ids:       make(map[string]int64),
		selfLoops: make(map[string]bool),
	}
}

// AddPage adds a page; adding an existing page is a no-op
func (g *NavGraph) AddPage(name string) {
	if _, exists := g.ids[name]; exists {
		return
	}
	id := int64(len(g.names))
	g.ids[name] = id
	g.names = append(g.names, name)
	g.graph.AddNode(simple.Node(id))
}

// AddEdge adds an edge from source to target, adding either page if missing
func (g *NavGraph) AddEdge(source, target string) {
	g.AddPage(source)
	g.AddPage(target)

	if source == target {
		g.selfLoops[source] = true
		return
	}

	from, to := g.ids[source], g.ids[target]
	if !g.graph.HasEdgeFromTo(from, to) {
		g.graph.SetEdge(g.graph.NewEdge(g.graph.Node(from), g.graph.Node(to)))
	}
}

// HasEdge reports whether source navigates to target
func (g *NavGraph) HasEdge(source, target string) bool {
	from, ok1 := g.ids[source]
	to, ok2 := g.ids[target]
	if !ok1 || !ok2 {
		return false
	}
	if from == to {
		return g.selfLoops[source]
	}
	return g.graph.HasEdgeFromTo(from, to)
}

// HasSelfLoop reports whether the page navigates to itself
func (g *NavGraph) HasSelfLoop(name string) bool {
	return g.selfLoops[name]
}

// Graph returns the underlying directed graph, without self loops
func (g *NavGraph) Graph() *simple.DirectedGraph {
	return g.graph
}

// ID returns the node ID of a page
func (g *NavGraph) ID(name string) (int64, bool) {
	id, ok := g.ids[name]
	return id, ok
}

// Name returns the page name for a node ID
func (g *NavGraph) Name(id int64) string {
	if id < 0 || id >= int64(len(g.names)) {
		return ""
	}
	return g.names[id]
}

// Pages returns page names in insertion order
func (g *NavGraph) Pages() []string {
	return append([]string(nil), g.names...)
}

// Successors returns the pages name navigates to, in page order, excluding itself
func (g *NavGraph) Successors(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	return g.sortedNames(g.graph.From(id))
}

// Predecessors returns the pages that navigate to name, in page order, excluding itself
func (g *NavGraph) Predecessors(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	return g.sortedNames(g.graph.To(id))
}

// Edges returns all edges as [source, target] pairs sorted by page order, self loops included
func (g *NavGraph) Edges() [][2]string {
	var edges [][2]string
	for id, name := range g.names {
		if g.selfLoops[name] {
			edges = append(edges, [2]string{name, name})
		}
		for _, target := range g.sortedNames(g.graph.From(int64(id))) {
			edges = append(edges, [2]string{name, target})
		}
	}
	return edges
}

func (g *NavGraph) sortedNames(nodes gograph.Nodes) []string {
	var ids []int64
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.names[id]
	}
	return names
}
