package model

import "sort"

// WidgetKind is the XML object type of a GUI widget
type WidgetKind string

const (
	WidgetButton    WidgetKind = "cGUIButtonWidget"
	WidgetCustom    WidgetKind = "cGUICustomWidget"
	WidgetTextBox   WidgetKind = "cGUITextBoxWidget"
	WidgetScrollBar WidgetKind = "cGUIScrollBarWidget"
)

// WidgetKinds are the GUI widget types found in menu level files
var WidgetKinds = []WidgetKind{WidgetButton, WidgetCustom, WidgetTextBox, WidgetScrollBar}

// Known reports whether k is one of WidgetKinds
func (k WidgetKind) Known() bool {
	for _, w := range WidgetKinds {
		if k == w {
			return true
		}
	}
	return false
}

// CallKind distinguishes a navigation call site from a navigation function definition
type CallKind string

const (
	CallSite   CallKind = "call"
	Definition CallKind = "definition"
)

// Reasons recorded on unresolved navigation calls
const (
	ReasonDynamic     = "dynamic"      // no literal target and no definition to follow
	ReasonUnknownPage = "unknown-page" // literal target names no known page
)

// Attributes is the attribute bag of an XML object
type Attributes map[string]string

// Get returns the value stored under key
func (a Attributes) Get(key string) (string, bool) {
	v, ok := a[key]
	return v, ok
}

// Keys returns the attribute names in sorted order
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object is a recognized widget node from the level XML
type Object struct {
	Type          WidgetKind `json:"type"`
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Attributes    Attributes `json:"attributes,omitempty"`
	EventHandlers []string   `json:"eventHandlers,omitempty"` // non-zero mpEventHandler items
	Line          int        `json:"line"`
}

// NavCall is a navigation call or navigation function definition found in a page script
type NavCall struct {
	SourcePage string   `json:"sourcePage"`
	Callee     string   `json:"calleeName"`              // e.g. "PushPageStack" or "gotoMP"
	Target     *string  `json:"literalTarget,omitempty"` // nil when the target is computed at runtime
	Kind       CallKind `json:"kind"`
	Function   string   `json:"function,omitempty"` // enclosing function, if any
	Line       int      `json:"line"`

	// Definitions only: if/elseif guards and assignment statements in the body
	Conditions []string `json:"conditions,omitempty"`
	Actions    []string `json:"actions,omitempty"`

	// Filled in by the correlator
	Resolved       bool   `json:"resolved"`
	ResolvedTarget string `json:"resolvedTarget,omitempty"`
	Via            string `json:"via,omitempty"` // "literal" or "definition"
	Reason         string `json:"reason,omitempty"`
}

// LiteralTarget returns the literal target and whether one was present
func (c NavCall) LiteralTarget() (string, bool) {
	if c.Target == nil {
		return "", false
	}
	return *c.Target, true
}

// ButtonRef is a button placed on a page, with its handler if one could be matched
type ButtonRef struct {
	Name            string   `json:"name"`
	XMLID           string   `json:"xmlId"`
	Placement       string   `json:"placement,omitempty"` // "reflection-id" or "name-prefix"
	ResolvedHandler *NavCall `json:"resolvedHandler"`
	Ambiguous       bool     `json:"ambiguous,omitempty"`
	Candidates      []string `json:"candidates,omitempty"`
}

// Page is one menu screen backed by one Lua script
type Page struct {
	Name                    string      `json:"name"`
	SourceFile              string      `json:"sourceFile"`
	Buttons                 []ButtonRef `json:"buttons"`
	OutgoingCalls           []NavCall   `json:"outgoingCalls"`
	NavigationFunctionCount int         `json:"navigationFunctionCount"`
	Incoming                []string    `json:"incoming"` // sorted source pages of resolved edges
	Outgoing                []string    `json:"outgoing"` // distinct resolved targets, first-seen order
}

// Connections is the number of distinct pages linked to or from this page
func (p *Page) Connections() int {
	return len(p.Incoming) + len(p.Outgoing)
}

// Summary holds report-wide counts
type Summary struct {
	TotalButtons      int    `json:"totalButtons"`
	TotalNavFunctions int    `json:"totalNavFunctions"`
	TotalPages        int    `json:"totalPages"`
	XMLFile           string `json:"xmlFile"`
	LuaFilesAnalyzed  int    `json:"luaFilesAnalyzed"`
	SkippedNodes      int    `json:"skippedNodes"`
	ResolvedEdges     int    `json:"resolvedEdges"`
	UnresolvedCalls   int    `json:"unresolvedCalls"`
}

// Report is the complete result of one analyze run, and the schema of the JSON report
type Report struct {
	Pages             []Page      `json:"pages"`
	Summary           Summary     `json:"summary"`
	UnassignedButtons []ButtonRef `json:"unassignedButtons"`
	Graph             GraphData   `json:"graph"`
	Cycles            [][]string  `json:"cycles"`
	EntryPoints       []string    `json:"entryPoints"`
}

// Page returns the page with the exact given name
func (r *Report) Page(name string) (*Page, bool) {
	for i := range r.Pages {
		if r.Pages[i].Name == name {
			return &r.Pages[i], true
		}
	}
	return nil, false
}

// PageNames returns page names in report order
func (r *Report) PageNames() []string {
	names := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		names[i] = p.Name
	}
	return names
}
