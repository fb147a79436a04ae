// Package query answers search, page and list commands over a loaded report.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

// Match fields
const (
	FieldPage   = "page"
	FieldCallee = "callee"
	FieldSource = "source"
	FieldTarget = "target"
	FieldButton = "button"
)

// Hit is one search match
type Hit struct {
	Page  string         `json:"page"`
	Field string         `json:"field"`
	Value string         `json:"value"`
	Call  *model.NavCall `json:"call,omitempty"`
}

// Search matches pattern case-insensitively as a substring of page names,
// button names and the callee, source page and target of every call. Hits
// are in report order; no hits is an empty result, not an error.
func Search(r *model.Report, pattern string) []Hit {
	needle := strings.ToLower(pattern)
	contains := func(s string) bool {
		return s != "" && strings.Contains(strings.ToLower(s), needle)
	}

	hits := []Hit{}
	for i := range r.Pages {
		page := &r.Pages[i]
		if contains(page.Name) {
			hits = append(hits, Hit{Page: page.Name, Field: FieldPage, Value: page.Name})
		}
		for _, b := range page.Buttons {
			if contains(b.Name) {
				hits = append(hits, Hit{Page: page.Name, Field: FieldButton, Value: b.Name})
			}
		}
		for j := range page.OutgoingCalls {
			call := &page.OutgoingCalls[j]
			field, value := callMatch(call, contains)
			if field == "" {
				continue
			}
			hits = append(hits, Hit{Page: page.Name, Field: field, Value: value, Call: call})
		}
	}
	return hits
}

// callMatch reports the first matching field of a call, so each call is hit at most once
func callMatch(call *model.NavCall, contains func(string) bool) (string, string) {
	if contains(call.Callee) {
		return FieldCallee, call.Callee
	}
	if contains(call.SourcePage) {
		return FieldSource, call.SourcePage
	}
	if t, ok := call.LiteralTarget(); ok && contains(t) {
		return FieldTarget, t
	}
	if contains(call.ResolvedTarget) {
		return FieldTarget, call.ResolvedTarget
	}
	return "", ""
}

// Lookup finds a page by exact name
func Lookup(r *model.Report, name string) (*model.Page, bool) {
	return r.Page(name)
}

// Sort orders for List
const (
	SortName        = "name"
	SortFunctions   = "functions"
	SortConnections = "connections"
)

// Entry is one row of a page listing
type Entry struct {
	Name        string `json:"name"`
	Functions   int    `json:"functions"`
	Buttons     int    `json:"buttons"`
	Connections int    `json:"connections"`
}

// List returns all pages sorted by the given key: counts descending, names
// ascending. Ties are broken by name.
func List(r *model.Report, by string) ([]Entry, error) {
	entries := make([]Entry, 0, len(r.Pages))
	for i := range r.Pages {
		p := &r.Pages[i]
		entries = append(entries, Entry{
			Name:        p.Name,
			Functions:   p.NavigationFunctionCount,
			Buttons:     len(p.Buttons),
			Connections: p.Connections(),
		})
	}

	var key func(Entry) int
	switch by {
	case SortName, "":
	case SortFunctions:
		key = func(e Entry) int { return e.Functions }
	case SortConnections:
		key = func(e Entry) int { return e.Connections }
	default:
		return nil, fmt.Errorf("unknown sort %q (want name, functions or connections)", by)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if key != nil {
			if ki, kj := key(entries[i]), key(entries[j]); ki != kj {
				return ki > kj
			}
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
