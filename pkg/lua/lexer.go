package lua

import (
	"bytes"
	"fmt"
)

type tokenKind int

const (
	tokIdent  tokenKind = iota // name, possibly a dotted/colon chain like tableData.gotoMP
	tokString                  // quoted or long-bracket string, value unescaped
	tokNumber
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string
	line  int
	start int // byte offset
	end   int // byte offset just past the token
}

var keywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

func (t token) isKeyword(word string) bool {
	return t.kind == tokIdent && t.text == word
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// lexError carries the line of a tokenizer failure
type lexError struct {
	line   int
	offset int
	msg    string
}

func (e *lexError) Error() string {
	return e.msg
}

type lexer struct {
	src  []byte
	pos  int
	line int
}

// tokenize splits Lua source into the few token kinds the scanner needs.
// Comments and whitespace are dropped.
func tokenize(src []byte) ([]token, error) {
	lx := &lexer{src: src, line: 1}
	var toks []token

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.line++
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			lx.pos++
		case c == '-' && lx.peek(1) == '-':
			if err := lx.comment(); err != nil {
				return nil, err
			}
		case c == '"' || c == '\'':
			tok, err := lx.shortString(c)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		case c == '[' && (lx.peek(1) == '[' || lx.peek(1) == '='):
			if level, ok := lx.longBracketLevel(lx.pos); ok {
				tok, err := lx.longString(level)
				if err != nil {
					return nil, err
				}
				toks = append(toks, tok)
				continue
			}
			toks = append(toks, lx.punct())
		case isIdentStart(c):
			toks = append(toks, lx.ident())
		case isDigit(c) || (c == '.' && isDigit(lx.peek(1))):
			toks = append(toks, lx.number())
		default:
			toks = append(toks, lx.punct())
		}
	}
	return toks, nil
}

func (lx *lexer) peek(n int) byte {
	if lx.pos+n < len(lx.src) {
		return lx.src[lx.pos+n]
	}
	return 0
}

func (lx *lexer) fail(format string, args ...any) error {
	return &lexError{line: lx.line, offset: lx.pos, msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) comment() error {
	lx.pos += 2
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '[' {
		if level, ok := lx.longBracketLevel(lx.pos); ok {
			_, err := lx.longString(level)
			return err
		}
	}
	for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
		lx.pos++
	}
	return nil
}

// longBracketLevel recognizes [[ and [==[ openers at i
func (lx *lexer) longBracketLevel(i int) (int, bool) {
	if i >= len(lx.src) || lx.src[i] != '[' {
		return 0, false
	}
	level := 0
	j := i + 1
	for j < len(lx.src) && lx.src[j] == '=' {
		level++
		j++
	}
	if j < len(lx.src) && lx.src[j] == '[' {
		return level, true
	}
	return 0, false
}

func (lx *lexer) longString(level int) (token, error) {
	startLine, start := lx.line, lx.pos
	lx.pos += level + 2
	closer := append(append([]byte{']'}, bytes.Repeat([]byte{'='}, level)...), ']')

	end := bytes.Index(lx.src[lx.pos:], closer)
	if end < 0 {
		lx.line = startLine
		lx.pos = start
		return token{}, lx.fail("unterminated long string or comment")
	}
	body := lx.src[lx.pos : lx.pos+end]
	lx.line += bytes.Count(body, []byte{'\n'})
	lx.pos += end + len(closer)

	// A newline right after the opener is not part of the string
	body = bytes.TrimPrefix(body, []byte{'\r'})
	body = bytes.TrimPrefix(body, []byte{'\n'})
	return token{kind: tokString, text: string(body), line: startLine, start: start, end: lx.pos}, nil
}

func (lx *lexer) shortString(quote byte) (token, error) {
	startLine, start := lx.line, lx.pos
	lx.pos++

	var b []byte
	for {
		if lx.pos >= len(lx.src) {
			lx.line = startLine
			return token{}, lx.fail("unterminated string")
		}
		c := lx.src[lx.pos]
		switch {
		case c == quote:
			lx.pos++
			return token{kind: tokString, text: string(b), line: startLine, start: start, end: lx.pos}, nil
		case c == '\n' || c == '\r':
			return token{}, lx.fail("unterminated string")
		case c == '\\' && lx.pos+1 < len(lx.src):
			next := lx.src[lx.pos+1]
			lx.pos += 2
			switch next {
			case 'n':
				b = append(b, '\n')
			case 't':
				b = append(b, '\t')
			case '\n', '\r':
				// \r\n and \n\r continue the string as one newline
				if lx.pos < len(lx.src) && (lx.src[lx.pos] == '\n' || lx.src[lx.pos] == '\r') && lx.src[lx.pos] != next {
					lx.pos++
				}
				b = append(b, '\n')
				lx.line++
			case 'z':
				lx.skipSpace()
			default:
				b = append(b, next)
			}
		default:
			b = append(b, c)
			lx.pos++
		}
	}
}

// skipSpace skips whitespace after a \z escape, counting lines
func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		switch c := lx.src[lx.pos]; c {
		case '\n', '\r':
			lx.pos++
			if lx.pos < len(lx.src) && (lx.src[lx.pos] == '\n' || lx.src[lx.pos] == '\r') && lx.src[lx.pos] != c {
				lx.pos++
			}
			lx.line++
		case ' ', '\t', '\f', '\v':
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) ident() token {
	start := lx.pos
	lx.pos++
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
	// Fold a.b.c and a:b chains into one token; ".." is concatenation and stops the chain
	for lx.pos+1 < len(lx.src) && (lx.src[lx.pos] == '.' || lx.src[lx.pos] == ':') && isIdentStart(lx.src[lx.pos+1]) {
		lx.pos += 2
		for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
			lx.pos++
		}
	}
	return token{kind: tokIdent, text: string(lx.src[start:lx.pos]), line: lx.line, start: start, end: lx.pos}
}

func (lx *lexer) number() token {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if isIdentPart(c) || c == '.' {
			lx.pos++
			continue
		}
		// exponent sign, e.g. 1e-3
		if (c == '-' || c == '+') && (lx.src[lx.pos-1] == 'e' || lx.src[lx.pos-1] == 'E') {
			lx.pos++
			continue
		}
		break
	}
	return token{kind: tokNumber, text: string(lx.src[start:lx.pos]), line: lx.line, start: start, end: lx.pos}
}

func (lx *lexer) punct() token {
	tok := token{kind: tokPunct, text: string(lx.src[lx.pos]), line: lx.line, start: lx.pos, end: lx.pos + 1}
	lx.pos++
	return tok
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
