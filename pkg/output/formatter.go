// Package output prints command results to the terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/query"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// PrintSummary prints the analyze summary and where the reports went
func PrintSummary(w io.Writer, r *model.Report, jsonPath, htmlPath string) {
	s := r.Summary

	bold.Fprintln(w, "BW2 Menu Button Organization")
	bold.Fprintln(w, "============================")
	fmt.Fprintf(w, "XML: %s (%d widget nodes skipped)\n", s.XMLFile, s.SkippedNodes)
	fmt.Fprintf(w, "Lua scripts: %d\n", s.LuaFilesAnalyzed)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Pages:                %d\n", s.TotalPages)
	fmt.Fprintf(w, "Buttons:              %d", s.TotalButtons)
	if n := len(r.UnassignedButtons); n > 0 {
		yellow.Fprintf(w, " (%d without a page)", n)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Navigation functions: %d\n", s.TotalNavFunctions)
	green.Fprintf(w, "Resolved edges:       %d\n", s.ResolvedEdges)
	if s.UnresolvedCalls > 0 {
		yellow.Fprintf(w, "Unresolved calls:     %d\n", s.UnresolvedCalls)
	} else {
		green.Fprintf(w, "Unresolved calls:     0\n")
	}
	if len(r.Cycles) > 0 {
		cyan.Fprintf(w, "Navigation cycles:    %d\n", len(r.Cycles))
	}
	fmt.Fprintln(w)

	if jsonPath != "" {
		fmt.Fprintf(w, "JSON report: %s\n", jsonPath)
	}
	if htmlPath != "" {
		fmt.Fprintf(w, "HTML report: %s\n", htmlPath)
	}
}

// PrintFlow prints one line per page with its outgoing navigation
func PrintFlow(w io.Writer, r *model.Report) {
	bold.Fprintln(w, "Navigation flow")
	if len(r.Pages) == 0 {
		faint.Fprintln(w, "  (no pages)")
		return
	}

	width := 0
	for _, p := range r.Pages {
		width = max(width, len(p.Name))
	}

	for _, p := range r.Pages {
		fmt.Fprintf(w, "  %-*s ", width, p.Name)
		if len(p.Outgoing) == 0 {
			faint.Fprintln(w, "(no outgoing navigation)")
			continue
		}
		fmt.Fprint(w, "-> ")
		cyan.Fprintln(w, strings.Join(p.Outgoing, ", "))
	}

	if len(r.EntryPoints) > 0 {
		fmt.Fprintf(w, "  entry points: %s\n", strings.Join(r.EntryPoints, ", "))
	}
	for _, c := range r.Cycles {
		yellow.Fprintf(w, "  cycle: %s\n", strings.Join(c, " <-> "))
	}
}

// PrintSearch prints search hits grouped by page
func PrintSearch(w io.Writer, pattern string, hits []query.Hit) {
	if len(hits) == 0 {
		yellow.Fprintf(w, "No matches for %q\n", pattern)
		return
	}

	bold.Fprintf(w, "%d match(es) for %q\n", len(hits), pattern)
	current := ""
	for _, h := range hits {
		if h.Page != current {
			current = h.Page
			cyan.Fprintf(w, "%s\n", h.Page)
		}
		if h.Call != nil {
			fmt.Fprintf(w, "  %-7s %s  line %d  %s\n", h.Field, h.Call.Callee, h.Call.Line, callStatus(*h.Call))
			printBody(w, "          ", *h.Call)
			continue
		}
		fmt.Fprintf(w, "  %-7s %s\n", h.Field, h.Value)
	}
}

// PrintPage prints a page's buttons and its calls with their resolution
func PrintPage(w io.Writer, p *model.Page) {
	bold.Fprintf(w, "Page %s", p.Name)
	faint.Fprintf(w, " (%s)\n", p.SourceFile)
	fmt.Fprintf(w, "Navigation functions: %d\n", p.NavigationFunctionCount)
	fmt.Fprintf(w, "Incoming: %s\n", listOrNone(p.Incoming))
	fmt.Fprintf(w, "Outgoing: %s\n", listOrNone(p.Outgoing))
	fmt.Fprintln(w)

	bold.Fprintf(w, "Buttons (%d)\n", len(p.Buttons))
	for _, b := range p.Buttons {
		fmt.Fprintf(w, "  %s", b.Name)
		faint.Fprintf(w, " [%s]", b.XMLID)
		switch {
		case b.ResolvedHandler != nil:
			green.Fprintf(w, " -> %s\n", b.ResolvedHandler.Callee)
		case b.Ambiguous:
			yellow.Fprintf(w, " ambiguous: %s\n", strings.Join(b.Candidates, ", "))
		default:
			red.Fprintln(w, " no handler")
		}
	}
	fmt.Fprintln(w)

	bold.Fprintf(w, "Navigation calls (%d)\n", len(p.OutgoingCalls))
	for _, c := range p.OutgoingCalls {
		kind := ""
		if c.Kind == model.Definition {
			kind = "def "
		}
		fmt.Fprintf(w, "  %4d  %s%s  %s\n", c.Line, kind, c.Callee, callStatus(c))
		printBody(w, "          ", c)
	}
}

// maxActions caps the actions printed per definition
const maxActions = 3

// printBody prints a definition's guards and the first few assignments
func printBody(w io.Writer, indent string, c model.NavCall) {
	if len(c.Conditions) > 0 {
		faint.Fprintf(w, "%sConditions: %s\n", indent, strings.Join(c.Conditions, ", "))
	}
	if len(c.Actions) > 0 {
		actions := c.Actions
		more := ""
		if len(actions) > maxActions {
			actions, more = actions[:maxActions], fmt.Sprintf(" (+%d more)", len(c.Actions)-maxActions)
		}
		faint.Fprintf(w, "%sActions: %s%s\n", indent, strings.Join(actions, ", "), more)
	}
}

// PrintPageNotFound reports a missed lookup and suggests pages with a similar name
func PrintPageNotFound(w io.Writer, name string, r *model.Report) {
	yellow.Fprintf(w, "Page %q not found\n", name)

	var similar []string
	lower := strings.ToLower(name)
	for _, p := range r.Pages {
		if pl := strings.ToLower(p.Name); strings.Contains(pl, lower) || strings.Contains(lower, pl) {
			similar = append(similar, p.Name)
		}
	}
	if len(similar) > 0 {
		fmt.Fprintf(w, "Did you mean: %s\n", strings.Join(similar, ", "))
	}
}

// PrintList prints the page listing as a table
func PrintList(w io.Writer, entries []query.Entry, by string) {
	bold.Fprintf(w, "%d page(s) sorted by %s\n", len(entries), by)

	width := len("PAGE")
	for _, e := range entries {
		width = max(width, len(e.Name))
	}

	faint.Fprintf(w, "%-*s  %9s  %7s  %11s\n", width, "PAGE", "FUNCTIONS", "BUTTONS", "CONNECTIONS")
	for _, e := range entries {
		fmt.Fprintf(w, "%-*s  %9d  %7d  %11d\n", width, e.Name, e.Functions, e.Buttons, e.Connections)
	}
}

func callStatus(c model.NavCall) string {
	if c.Resolved {
		return green.Sprintf("-> %s (%s)", c.ResolvedTarget, c.Via)
	}
	if t, ok := c.LiteralTarget(); ok {
		return red.Sprintf("-> %s (%s)", t, c.Reason)
	}
	return yellow.Sprintf("unresolved (%s)", c.Reason)
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
