// Package lua finds navigation calls in menu page scripts.
//
// Matching works on tokens, not on a Lua grammar. A call is an identifier
// whose last segment is a navigation verb, directly followed by "(". Its
// literal target is the first argument when that argument is a lone string
// literal. Anything else (variables, concatenations, table lookups) leaves
// the target absent.
package lua

import (
	"errors"
	"os"
	"strings"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/finder"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

// Config lists the navigation verbs
type Config struct {
	GotoPrefixes []string // identifiers starting with one of these, e.g. gotoMP
	Verbs        []string // exact identifiers, e.g. PushPageStack
	RegisterFunc string   // widget registration call, e.g. RegisterReflectionId
}

// DefaultConfig matches goto* and the page stack functions
func DefaultConfig() Config {
	return Config{
		GotoPrefixes: []string{"goto"},
		Verbs:        []string{"PushPageStack", "PopPageStack", "SetPageStack", "ResetPageStack"},
		RegisterFunc: "RegisterReflectionId",
	}
}

// Ref is a widget registration, e.g. GUI_Button.Main_Save = RegisterReflectionId("20002125")
type Ref struct {
	ID   string `json:"id"`
	Var  string `json:"var,omitempty"` // assigned variable, if any
	Line int    `json:"line"`
}

// Result is everything found in one script
type Result struct {
	Page  string
	File  string
	Calls []model.NavCall // call sites and definitions in document order
	Refs  []Ref
}

// Definitions counts the navigation function definitions in the result
func (r *Result) Definitions() int {
	n := 0
	for _, c := range r.Calls {
		if c.Kind == model.Definition {
			n++
		}
	}
	return n
}

// Scanner matches navigation verbs in Lua source
type Scanner struct {
	cfg   Config
	verbs map[string]bool
}

// NewScanner creates a scanner for the given verbs
func NewScanner(cfg Config) *Scanner {
	verbs := make(map[string]bool, len(cfg.Verbs))
	for _, v := range cfg.Verbs {
		verbs[v] = true
	}
	return &Scanner{cfg: cfg, verbs: verbs}
}

// IsVerb reports whether name (or the last segment of a dotted name) is a navigation verb
func (s *Scanner) IsVerb(name string) bool {
	seg := lastSegment(name)
	if s.verbs[seg] {
		return true
	}
	for _, p := range s.cfg.GotoPrefixes {
		if len(seg) > len(p) && strings.HasPrefix(seg, p) {
			return true
		}
	}
	return false
}

// block is an open Lua block; only named function blocks carry a name
type block struct {
	function bool
	name     string
	defIndex int // index into Result.Calls of the definition record, -1 if none
	braces   int // table constructor depth when the block opened
}

// Scan matches verbs in one script's source. file is used for the page name and errors.
func (s *Scanner) Scan(file string, src []byte) (*Result, error) {
	toks, err := tokenize(src)
	if err != nil {
		var le *lexError
		if errors.As(err, &le) {
			return nil, &model.InputError{File: file, Line: le.line, Offset: int64(le.offset), Err: errors.New(le.msg)}
		}
		return nil, &model.InputError{File: file, Offset: -1, Err: err}
	}

	page := finder.PageName(file)
	result := &Result{Page: page, File: file, Calls: []model.NavCall{}, Refs: []Ref{}}
	var stack []block
	braces := 0

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case tok.isPunct("{"):
			braces++
		case tok.isPunct("}"):
			braces--
		}
		if tok.kind != tokIdent {
			continue
		}

		switch {
		case tok.isKeyword("function"):
			b := block{function: true, defIndex: -1, braces: braces}
			if i+2 < len(toks) && toks[i+1].kind == tokIdent && !keywords[toks[i+1].text] && toks[i+2].isPunct("(") {
				b.name = lastSegment(toks[i+1].text)
				if s.IsVerb(toks[i+1].text) {
					b.defIndex = len(result.Calls)
					result.Calls = append(result.Calls, model.NavCall{
						SourcePage: page,
						Callee:     b.name,
						Kind:       model.Definition,
						Function:   enclosingFunction(stack),
						Line:       toks[i+1].line,
					})
				}
				i++
			}
			stack = append(stack, b)
			continue
		case tok.isKeyword("if"), tok.isKeyword("elseif"):
			if def := definitionBlock(stack); def != nil {
				if cond, ok := condition(src, toks, i); ok {
					result.Calls[def.defIndex].Conditions = append(result.Calls[def.defIndex].Conditions, cond)
				}
			}
			if tok.isKeyword("if") {
				stack = append(stack, block{defIndex: -1, braces: braces})
			}
			continue
		case tok.isKeyword("do"), tok.isKeyword("repeat"):
			stack = append(stack, block{defIndex: -1, braces: braces})
			continue
		case tok.isKeyword("end"), tok.isKeyword("until"):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		case keywords[tok.text]:
			continue
		}

		if def := definitionBlock(stack); def != nil && braces == stack[len(stack)-1].braces {
			if action, ok := assignment(src, toks, i); ok {
				result.Calls[def.defIndex].Actions = append(result.Calls[def.defIndex].Actions, action)
			}
		}

		if i+1 >= len(toks) || !toks[i+1].isPunct("(") {
			continue
		}

		if s.cfg.RegisterFunc != "" && lastSegment(tok.text) == s.cfg.RegisterFunc {
			if arg, ok := literalArg(toks, i+2); ok {
				ref := Ref{ID: arg, Line: tok.line}
				if i >= 2 && toks[i-1].isPunct("=") && toks[i-2].kind == tokIdent {
					ref.Var = toks[i-2].text
				}
				result.Refs = append(result.Refs, ref)
			}
			continue
		}

		if !s.IsVerb(tok.text) {
			continue
		}

		call := model.NavCall{
			SourcePage: page,
			Callee:     lastSegment(tok.text),
			Kind:       model.CallSite,
			Function:   enclosingFunction(stack),
			Line:       tok.line,
		}
		if arg, ok := literalArg(toks, i+2); ok {
			target := arg
			call.Target = &target

			// A navigation function goes where its first literal page stack call goes
			if def := definitionBlock(stack); def != nil && s.verbs[call.Callee] && result.Calls[def.defIndex].Target == nil {
				defTarget := arg
				result.Calls[def.defIndex].Target = &defTarget
			}
		}
		result.Calls = append(result.Calls, call)
		logging.Trace("navigation call", "page", page, "callee", call.Callee, "line", call.Line)
	}

	return result, nil
}

// ScanFile reads and scans one script
func (s *Scanner) ScanFile(path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.InputError{File: path, Offset: -1, Err: err}
	}
	return s.Scan(path, src)
}

// literalArg returns the string at toks[i] if it is the whole first argument
func literalArg(toks []token, i int) (string, bool) {
	if i+1 >= len(toks) || toks[i].kind != tokString {
		return "", false
	}
	if next := toks[i+1]; next.isPunct(")") || next.isPunct(",") {
		return toks[i].text, true
	}
	return "", false
}

func innermostFunction(stack []block) *block {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].function {
			return &stack[i]
		}
	}
	return nil
}

func enclosingFunction(stack []block) string {
	if b := innermostFunction(stack); b != nil {
		return b.name
	}
	return ""
}

// definitionBlock returns the nearest named function if it is a navigation
// function definition. Anonymous closures in its body belong to it.
func definitionBlock(stack []block) *block {
	for i := len(stack) - 1; i >= 0; i-- {
		if !stack[i].function || stack[i].name == "" {
			continue
		}
		if stack[i].defIndex < 0 {
			return nil
		}
		return &stack[i]
	}
	return nil
}

// condition returns the source text between the if or elseif at toks[i] and its then
func condition(src []byte, toks []token, i int) (string, bool) {
	for j := i + 1; j < len(toks); j++ {
		if toks[j].isKeyword("then") {
			if j == i+1 {
				return "", false
			}
			return sourceText(src, toks[i+1], toks[j-1]), true
		}
		if toks[j].isKeyword("end") || toks[j].isKeyword("function") {
			break
		}
	}
	return "", false
}

// statementEnd stops an assignment's right-hand side
var statementEnd = map[string]bool{
	"end": true, "else": true, "elseif": true, "until": true, "return": true, "break": true,
	"local": true, "if": true, "for": true, "while": true, "repeat": true, "goto": true,
	"do": true, "then": true,
}

// assignment returns the statement text when toks[i] is the last name on the
// left of an assignment, e.g. the b in "local a, b = 1, 2"
func assignment(src []byte, toks []token, i int) (string, bool) {
	if i+2 >= len(toks) || !toks[i+1].isPunct("=") || toks[i+2].isPunct("=") {
		return "", false
	}
	if i > 0 && (toks[i-1].isKeyword("for") || toks[i-1].kind == tokPunct && strings.Contains("=~<>", toks[i-1].text)) {
		return "", false
	}

	start := i
	for start >= 2 && toks[start-1].isPunct(",") && toks[start-2].kind == tokIdent && !keywords[toks[start-2].text] {
		start -= 2
	}
	if start >= 1 && toks[start-1].isKeyword("local") {
		start--
	}

	last, depth := i+1, 0
	for j := i + 2; j < len(toks); j++ {
		t := toks[j]
		if depth == 0 && j > i+2 {
			if t.line != toks[last].line || t.isPunct(";") || (t.kind == tokIdent && statementEnd[t.text]) {
				break
			}
		}
		switch {
		case t.isPunct("("), t.isPunct("["), t.isPunct("{"):
			depth++
		case t.isPunct(")"), t.isPunct("]"), t.isPunct("}"):
			if depth == 0 {
				return sourceText(src, toks[start], toks[last]), last > i+1
			}
			depth--
		}
		last = j
	}
	if last == i+1 {
		return "", false
	}
	return sourceText(src, toks[start], toks[last]), true
}

// sourceText is the source from the start of first to the end of last, whitespace collapsed
func sourceText(src []byte, first, last token) string {
	return strings.Join(strings.Fields(string(src[first.start:last.end])), " ")
}

func lastSegment(name string) string {
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		return name[i+1:]
	}
	return name
}
