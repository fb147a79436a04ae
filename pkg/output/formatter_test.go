package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/query"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func strPtr(s string) *string { return &s }

func sample() *model.Report {
	return &model.Report{
		Pages: []model.Page{
			{
				Name: "Main", SourceFile: "Main.lua", NavigationFunctionCount: 1,
				Buttons: []model.ButtonRef{
					{Name: "Main_MP", XMLID: "1", ResolvedHandler: &model.NavCall{Callee: "gotoMP"}},
					{Name: "Main_Opt", XMLID: "2", Ambiguous: true, Candidates: []string{"gotoOpt", "gotoOptMenu"}},
					{Name: "Main_Quit", XMLID: "3"},
				},
				OutgoingCalls: []model.NavCall{
					{
						Callee: "gotoMP", Kind: model.Definition, Line: 4, Resolved: true, ResolvedTarget: "MPLoading", Via: "literal",
						Conditions: []string{`slot == "host"`, "not busy"},
						Actions:    []string{"a = 1", "b = 2", "c = 3", `menuState.lastPage = "Main"`},
					},
					{Callee: "PushPageStack", Kind: model.CallSite, Line: 9, Target: strPtr("Secret"), Reason: model.ReasonUnknownPage},
					{Callee: "PopPageStack", Kind: model.CallSite, Line: 12, Reason: model.ReasonDynamic},
				},
				Incoming: []string{}, Outgoing: []string{"MPLoading"},
			},
			{Name: "MPLoading", SourceFile: "MPLoading.lua", Incoming: []string{"Main"}},
		},
		Summary:     model.Summary{TotalPages: 2, TotalButtons: 3, TotalNavFunctions: 1, ResolvedEdges: 1, UnresolvedCalls: 2, XMLFile: "Frontend2_Level.xml", LuaFilesAnalyzed: 2},
		EntryPoints: []string{"Main"},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sample(), "out/report.json", "out/report.html")
	out := buf.String()

	for _, want := range []string{"Pages:                2", "Buttons:              3", "Unresolved calls:     2", "JSON report: out/report.json", "HTML report: out/report.html"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintFlow(t *testing.T) {
	var buf bytes.Buffer
	PrintFlow(&buf, sample())
	out := buf.String()

	if !strings.Contains(out, "Main      -> MPLoading") {
		t.Errorf("Expected aligned flow line, got:\n%s", out)
	}
	if !strings.Contains(out, "MPLoading (no outgoing navigation)") {
		t.Errorf("Expected dead-end page, got:\n%s", out)
	}
	if !strings.Contains(out, "entry points: Main") {
		t.Errorf("Expected entry points, got:\n%s", out)
	}
}

func TestPrintPage(t *testing.T) {
	var buf bytes.Buffer
	PrintPage(&buf, &sample().Pages[0])
	out := buf.String()

	for _, want := range []string{
		"Main_MP [1] -> gotoMP",
		"Main_Opt [2] ambiguous: gotoOpt, gotoOptMenu",
		"Main_Quit [3] no handler",
		"def gotoMP  -> MPLoading (literal)",
		"PushPageStack  -> Secret (unknown-page)",
		"PopPageStack  unresolved (dynamic)",
		`Conditions: slot == "host", not busy`,
		"Actions: a = 1, b = 2, c = 3 (+1 more)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSearch(t *testing.T) {
	var buf bytes.Buffer
	PrintSearch(&buf, "nonexistent_xyz", []query.Hit{})
	if !strings.Contains(buf.String(), `No matches for "nonexistent_xyz"`) {
		t.Errorf("Unexpected empty search output: %s", buf.String())
	}

	buf.Reset()
	r := sample()
	PrintSearch(&buf, "goto", query.Search(r, "goto"))
	if !strings.Contains(buf.String(), "callee  gotoMP  line 4") {
		t.Errorf("Unexpected search output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `Conditions: slot == "host", not busy`) {
		t.Errorf("Expected the definition's conditions under the hit:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "menuState") {
		t.Errorf("Only the first actions should be printed:\n%s", buf.String())
	}
}

func TestPrintPageNotFound(t *testing.T) {
	var buf bytes.Buffer
	PrintPageNotFound(&buf, "main", sample())
	out := buf.String()
	if !strings.Contains(out, `Page "main" not found`) || !strings.Contains(out, "Did you mean: Main") {
		t.Errorf("Unexpected not-found output:\n%s", out)
	}
}

func TestPrintList(t *testing.T) {
	entries, err := query.List(sample(), query.SortConnections)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	PrintList(&buf, entries, query.SortConnections)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected title, header and 2 rows, got:\n%s", buf.String())
	}
	// One connection each, so the name breaks the tie
	if !strings.HasPrefix(lines[2], "MPLoading ") || !strings.HasPrefix(lines[3], "Main ") {
		t.Errorf("Unexpected row order:\n%s", buf.String())
	}
}
