package cycles

import (
	"sort"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/graph"
)

// FindPageCycles returns the navigation loops of the graph: every strongly
// connected component with more than one page, plus pages that navigate to
// themselves. Pages inside a cycle and the cycles themselves are in page order.
func FindPageCycles(g *graph.NavGraph) [][]string {
	var found [][]int64
	inCycle := make(map[int64]bool)
	for _, scc := range topo.TarjanSCC(g.Graph()) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]int64, len(scc))
		for i, n := range scc {
			ids[i] = n.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		found = append(found, ids)
		for _, id := range ids {
			inCycle[id] = true
		}
	}
	// A self loop on a page already inside a larger cycle is not reported again
	for _, name := range g.Pages() {
		if id, _ := g.ID(name); g.HasSelfLoop(name) && !inCycle[id] {
			found = append(found, []int64{id})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i][0] < found[j][0] })

	cycles := make([][]string, 0, len(found))
	for _, ids := range found {
		pages := make([]string, len(ids))
		for i, id := range ids {
			pages[i] = g.Name(id)
		}
		cycles = append(cycles, pages)
	}
	return cycles
}

// EntryPoints returns, in page order, the pages no other page navigates to
// that still navigate somewhere themselves. Isolated pages are not entry points.
func EntryPoints(g *graph.NavGraph) []string {
	entries := []string{}
	for _, name := range g.Pages() {
		if len(g.Predecessors(name)) == 0 && len(g.Successors(name)) > 0 {
			entries = append(entries, name)
		}
	}
	return entries
}
