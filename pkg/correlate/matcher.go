package correlate

import (
	"strings"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/lua"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

// Config holds the button to handler rules.
//
// A template is expanded per button: {name} is the full button name, {short}
// the name without its "<Page>_" prefix and {page} the page name.
type Config struct {
	Handlers []string
	FoldCase bool
}

// DefaultConfig matches Main_Save to a callee named Main_Save, gotoSave or Save
func DefaultConfig() Config {
	return Config{
		Handlers: []string{"{name}", "goto{short}", "{short}"},
		FoldCase: true,
	}
}

// Matcher finds the navigation callee that handles a button
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher for the given rules
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Names expands the handler templates for a button on a page
func (m *Matcher) Names(button, page string) []string {
	short := button
	if page != "" && m.hasPagePrefix(button, page) {
		short = button[len(page)+1:]
	}

	r := strings.NewReplacer("{name}", button, "{short}", short, "{page}", page)
	names := make([]string, 0, len(m.cfg.Handlers))
	for _, tmpl := range m.cfg.Handlers {
		names = append(names, r.Replace(tmpl))
	}
	return names
}

// Match returns the distinct callees among calls that any expanded name matches, in call order
func (m *Matcher) Match(button, page string, calls []model.NavCall) []string {
	names := m.Names(button, page)

	var matched []string
	seen := make(map[string]bool)
	for _, c := range calls {
		if seen[c.Callee] {
			continue
		}
		for _, n := range names {
			if m.equal(c.Callee, n) {
				seen[c.Callee] = true
				matched = append(matched, c.Callee)
				break
			}
		}
	}
	return matched
}

func (m *Matcher) equal(a, b string) bool {
	if m.cfg.FoldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// hasPagePrefix reports whether name starts with "<page>_"
func (m *Matcher) hasPagePrefix(name, page string) bool {
	if len(name) <= len(page)+1 || name[len(page)] != '_' {
		return false
	}
	return m.equal(name[:len(page)], page)
}

// placeButtons assigns each button to a page and resolves its handler
func (b *Builder) placeButtons(report *model.Report, scripts []*lua.Result, index map[string]int, objects []model.Object) {
	registered := make(map[string]string)
	for _, s := range scripts {
		for _, ref := range s.Refs {
			if _, taken := registered[ref.ID]; !taken {
				registered[ref.ID] = s.Page
			}
		}
	}

	for _, obj := range objects {
		ref := model.ButtonRef{Name: obj.Name, XMLID: obj.ID}

		pageName, placement := "", ""
		if p, ok := registered[obj.ID]; ok && obj.ID != "" {
			pageName, placement = p, PlacementReflectionID
		} else if p := b.longestPrefixPage(obj.Name, report.Pages); p != "" {
			pageName, placement = p, PlacementNamePrefix
		}

		if pageName == "" {
			report.UnassignedButtons = append(report.UnassignedButtons, ref)
			continue
		}

		page := &report.Pages[index[pageName]]
		ref.Placement = placement
		b.resolveHandler(&ref, page)
		page.Buttons = append(page.Buttons, ref)
	}
}

func (b *Builder) longestPrefixPage(name string, pages []model.Page) string {
	best := ""
	for _, p := range pages {
		if len(p.Name) > len(best) && b.matcher.hasPagePrefix(name, p.Name) {
			best = p.Name
		}
	}
	return best
}

func (b *Builder) resolveHandler(ref *model.ButtonRef, page *model.Page) {
	matched := b.matcher.Match(ref.Name, page.Name, page.OutgoingCalls)
	switch len(matched) {
	case 0:
	case 1:
		handler := handlerCall(matched[0], page.OutgoingCalls)
		ref.ResolvedHandler = &handler
	default:
		ref.Ambiguous = true
		ref.Candidates = matched
	}
}

// handlerCall picks the record describing a callee: its definition if the page has one, else its first call
func handlerCall(callee string, calls []model.NavCall) model.NavCall {
	first := -1
	for i, c := range calls {
		if c.Callee != callee {
			continue
		}
		if c.Kind == model.Definition {
			return c
		}
		if first < 0 {
			first = i
		}
	}
	return calls[first]
}
