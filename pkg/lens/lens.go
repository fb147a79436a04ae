// Package lens narrows the navigation graph to the pages around a selection.
package lens

import (
	"fmt"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

// Infinite is the distance of a page not connected to the selection
const Infinite = "infinite"

// View is the part of the graph within Depth hops of the selected pages
type View struct {
	Selected  []string        `json:"selected"`
	Depth     int             `json:"depth"`
	Distances map[string]any  `json:"distances"` // int or Infinite, for every page
	Graph     model.GraphData `json:"graph"`
}

// distanceQueueNode is a page in the BFS queue
type distanceQueueNode struct {
	page     string
	distance int
}

// ComputeDistances returns the shortest hop count from each page to the
// nearest selected page. Navigation is followed in both directions, so a page
// that leads to the selection is as close as one the selection leads to.
func ComputeDistances(g *model.GraphData, selected []string) map[string]any {
	distances := make(map[string]any, len(g.Nodes))
	adjacency := buildAdjacencyList(g)

	queue := make([]distanceQueueNode, 0, len(selected))
	for _, page := range selected {
		if _, seen := distances[page]; seen {
			continue
		}
		distances[page] = 0
		queue = append(queue, distanceQueueNode{page: page})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range adjacency[current.page] {
			if _, seen := distances[neighbor]; !seen {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{page: neighbor, distance: current.distance + 1})
			}
		}
	}

	for _, node := range g.Nodes {
		if _, seen := distances[node.ID]; !seen {
			distances[node.ID] = Infinite
		}
	}
	return distances
}

// buildAdjacencyList creates an undirected adjacency list in edge order
func buildAdjacencyList(g *model.GraphData) map[string][]string {
	adjacency := make(map[string][]string)
	for _, edge := range g.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		adjacency[edge.Target] = append(adjacency[edge.Target], edge.Source)
	}
	return adjacency
}

// Focus keeps the pages within depth hops of the selection and the edges
// between them, both in report order. Every selected page must exist.
func Focus(g *model.GraphData, selected []string, depth int) (*View, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("no pages selected")
	}
	if depth < 0 {
		return nil, fmt.Errorf("depth must not be negative, got %d", depth)
	}

	known := make(map[string]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		known[node.ID] = true
	}
	for _, page := range selected {
		if !known[page] {
			return nil, fmt.Errorf("page not found: %s", page)
		}
	}

	distances := ComputeDistances(g, selected)
	visible := func(id string) bool {
		d, ok := distances[id].(int)
		return ok && d <= depth
	}

	view := &View{
		Selected:  selected,
		Depth:     depth,
		Distances: distances,
		Graph:     model.GraphData{Nodes: []model.GraphNode{}, Edges: []model.GraphEdge{}},
	}
	for _, node := range g.Nodes {
		if visible(node.ID) {
			view.Graph.Nodes = append(view.Graph.Nodes, node)
		}
	}
	for _, edge := range g.Edges {
		if visible(edge.Source) && visible(edge.Target) {
			view.Graph.Edges = append(view.Graph.Edges, edge)
		}
	}
	return view, nil
}
