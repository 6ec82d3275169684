package rdf

import (
	"fmt"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
)

// ErrUnsupportedFormat indicates an unsupported output or input format.
var ErrUnsupportedFormat = errors.Mark(errors.New("unsupported RDF format"), errors.ErrConfiguration)

// ParseError provides structured context for parse failures.
type ParseError struct {
	Format    string // Format name (e.g., "nquads")
	Statement string // Offending statement
	Line      int    // 1-based line number (0 if unknown)
	Column    int    // 1-based column number (0 if unknown)
	Err       error  // Underlying error
}

func (e *ParseError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Format)
	if e.Line > 0 {
		if e.Column > 0 {
			fmt.Fprintf(&msg, ":%d:%d", e.Line, e.Column)
		} else {
			fmt.Fprintf(&msg, ":%d", e.Line)
		}
	}
	msg.WriteString(": ")
	msg.WriteString(e.Err.Error())
	if excerpt := e.excerpt(); excerpt != "" {
		msg.WriteString("\n  ")
		msg.WriteString(excerpt)
	}
	return msg.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// excerpt shows up to 40 bytes either side of the column, with a caret.
func (e *ParseError) excerpt() string {
	const contextLen = 40
	if e.Statement == "" {
		return ""
	}
	if e.Column <= 0 {
		if len(e.Statement) > 2*contextLen {
			return e.Statement[:2*contextLen] + "..."
		}
		return e.Statement
	}
	pos := e.Column - 1
	if pos > len(e.Statement) {
		pos = len(e.Statement)
	}
	start := pos - contextLen
	if start < 0 {
		start = 0
	}
	end := pos + contextLen
	if end > len(e.Statement) {
		end = len(e.Statement)
	}
	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	suffix := ""
	if end < len(e.Statement) {
		suffix = "..."
	}
	caret := strings.Repeat(" ", len(prefix)+pos-start) + "^"
	return prefix + e.Statement[start:end] + suffix + "\n  " + caret
}
