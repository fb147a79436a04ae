package model

import (
	"fmt"
	"strings"
)

// InputError is a missing or malformed input file. It aborts analyze before
// any report is written.
type InputError struct {
	File   string
	Line   int   // 1-based, 0 if unknown
	Column int   // 1-based, 0 if unknown
	Offset int64 // byte offset, -1 if unknown
	Err    error
}

func (e *InputError) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ":%d", e.Column)
		}
	} else if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InputError) Unwrap() error {
	return e.Err
}
