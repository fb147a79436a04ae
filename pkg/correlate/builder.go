// Package correlate joins widget objects and script scan results into pages,
// navigation edges and button handlers.
//
// Scripts are processed sorted by file name and every list in the result is
// in first-seen order of that traversal, so the same inputs always build the
// same report.
package correlate

import (
	"path/filepath"
	"sort"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/cycles"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/graph"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/lua"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

// How a resolved call found its page
const (
	ViaLiteral    = "literal"
	ViaDefinition = "definition"
)

// How a button was assigned to a page
const (
	PlacementReflectionID = "reflection-id"
	PlacementNamePrefix   = "name-prefix"
)

// Input is everything one analyze run collected
type Input struct {
	XMLFile string
	Objects []model.Object // XML document order
	Skipped int
	Scripts []*lua.Result // any order
}

// Builder builds a report from collected inputs
type Builder struct {
	matcher *Matcher
}

// NewBuilder creates a builder using the given handler rules
func NewBuilder(cfg Config) *Builder {
	return &Builder{matcher: NewMatcher(cfg)}
}

type definition struct {
	page       string
	target     string
	conditions []string
	actions    []string
}

// Build correlates the inputs. It never fails: anything that cannot be
// resolved is recorded on the report instead.
func (b *Builder) Build(in Input) *model.Report {
	logger := logging.New("correlate")

	scripts := sortedScripts(in.Scripts)
	report := &model.Report{
		Pages:             make([]model.Page, 0, len(scripts)),
		UnassignedButtons: []model.ButtonRef{},
		Graph:             model.GraphData{Nodes: []model.GraphNode{}, Edges: []model.GraphEdge{}},
	}

	navGraph := graph.NewNavGraph()
	index := make(map[string]int, len(scripts))
	var kept []*lua.Result
	for _, s := range scripts {
		if _, dup := index[s.Page]; dup {
			logger.Warn("duplicate page name, keeping the first script", "page", s.Page, "file", s.File)
			continue
		}
		index[s.Page] = len(report.Pages)
		report.Pages = append(report.Pages, model.Page{
			Name:          s.Page,
			SourceFile:    filepath.Base(s.File),
			Buttons:       []model.ButtonRef{},
			OutgoingCalls: []model.NavCall{},
			Incoming:      []string{},
			Outgoing:      []string{},
		})
		navGraph.AddPage(s.Page)
		kept = append(kept, s)
	}

	defs := collectDefinitions(kept)

	for _, s := range kept {
		page := &report.Pages[index[s.Page]]
		seen := make(map[string]bool)

		for _, call := range s.Calls {
			def := b.resolve(&call, defs, index)

			if call.Kind == model.Definition {
				page.NavigationFunctionCount++
			} else if call.Resolved {
				navGraph.AddEdge(page.Name, call.ResolvedTarget)
				edge := model.GraphEdge{
					Source: page.Name,
					Target: call.ResolvedTarget,
					Label:  call.Callee,
					Via:    call.Via,
					Line:   call.Line,
				}
				if def != nil {
					edge.Conditions, edge.Actions = def.conditions, def.actions
				}
				report.Graph.Edges = append(report.Graph.Edges, edge)
				if !seen[call.ResolvedTarget] {
					seen[call.ResolvedTarget] = true
					page.Outgoing = append(page.Outgoing, call.ResolvedTarget)
				}
			} else {
				report.Summary.UnresolvedCalls++
			}
			page.OutgoingCalls = append(page.OutgoingCalls, call)
		}
		report.Summary.TotalNavFunctions += page.NavigationFunctionCount
	}

	for i := range report.Pages {
		page := &report.Pages[i]
		incoming := navGraph.Predecessors(page.Name)
		if navGraph.HasSelfLoop(page.Name) {
			incoming = append(incoming, page.Name)
		}
		sort.Strings(incoming)
		page.Incoming = append(page.Incoming, incoming...)
	}

	b.placeButtons(report, kept, index, in.Objects)

	for _, page := range report.Pages {
		report.Graph.Nodes = append(report.Graph.Nodes, model.GraphNode{
			ID:            page.Name,
			Label:         page.Name,
			Type:          "page",
			FunctionCount: page.NavigationFunctionCount,
			ButtonCount:   len(page.Buttons),
		})
	}

	report.Cycles = cycles.FindPageCycles(navGraph)
	report.EntryPoints = cycles.EntryPoints(navGraph)

	report.Summary.TotalPages = len(report.Pages)
	report.Summary.TotalButtons = len(in.Objects)
	report.Summary.XMLFile = filepath.Base(in.XMLFile)
	report.Summary.LuaFilesAnalyzed = len(scripts)
	report.Summary.SkippedNodes = in.Skipped
	report.Summary.ResolvedEdges = len(report.Graph.Edges)

	logger.Debug("correlated",
		"pages", report.Summary.TotalPages,
		"buttons", report.Summary.TotalButtons,
		"edges", report.Summary.ResolvedEdges,
		"unresolved", report.Summary.UnresolvedCalls,
		"cycles", len(report.Cycles))
	return report
}

// resolve fills the correlator fields of one call. It returns the definition
// the call resolved through, if any.
func (b *Builder) resolve(call *model.NavCall, defs map[string][]definition, pages map[string]int) *definition {
	if target, ok := call.LiteralTarget(); ok {
		if _, exists := pages[target]; exists {
			call.Resolved, call.ResolvedTarget, call.Via = true, target, ViaLiteral
		} else {
			call.Reason = model.ReasonUnknownPage
		}
		return nil
	}

	if call.Kind == model.CallSite {
		if def, ok := lookupDefinition(defs[call.Callee], call.SourcePage); ok {
			if _, exists := pages[def.target]; !exists {
				call.Reason = model.ReasonUnknownPage
				return nil
			}
			call.Resolved, call.ResolvedTarget, call.Via = true, def.target, ViaDefinition
			return &def
		}
	}
	call.Reason = model.ReasonDynamic
	return nil
}

// collectDefinitions maps a navigation function name to its definitions with a literal target, in page order
func collectDefinitions(scripts []*lua.Result) map[string][]definition {
	defs := make(map[string][]definition)
	for _, s := range scripts {
		for _, c := range s.Calls {
			if c.Kind != model.Definition {
				continue
			}
			if target, ok := c.LiteralTarget(); ok {
				defs[c.Callee] = append(defs[c.Callee], definition{
					page:       s.Page,
					target:     target,
					conditions: c.Conditions,
					actions:    c.Actions,
				})
			}
		}
	}
	return defs
}

// lookupDefinition prefers a definition on the calling page, then the first one in page order
func lookupDefinition(defs []definition, page string) (definition, bool) {
	for _, d := range defs {
		if d.page == page {
			return d, true
		}
	}
	if len(defs) > 0 {
		return defs[0], true
	}
	return definition{}, false
}

func sortedScripts(in []*lua.Result) []*lua.Result {
	scripts := make([]*lua.Result, 0, len(in))
	for _, s := range in {
		if s != nil {
			scripts = append(scripts, s)
		}
	}
	sort.SliceStable(scripts, func(i, j int) bool {
		bi, bj := filepath.Base(scripts[i].File), filepath.Base(scripts[j].File)
		if bi != bj {
			return bi < bj
		}
		return scripts[i].File < scripts[j].File
	})
	return scripts
}
