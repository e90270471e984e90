// Package diagnostic provides error reporting for model compilation.
//
// Every diagnostic carries a severity and an accurate source location;
// formatting follows the <file>:<line>:<col>: <message> convention.
package diagnostic

import (
	"fmt"
	"sort"
	"strings"
)

// Severity represents the severity level of a diagnostic.
type Severity uint8

const (
	// Error prevents checker generation.
	Error Severity = iota
	// Warning is a non-blocking issue.
	Warning
	// Note provides additional context for another diagnostic.
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Position represents a position in source code.
type Position struct {
	Offset int // Byte offset (0-based)
	Line   int // Line number (1-based)
	Column int // Column number (1-based)
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Severity Severity
	Message  string
	Position Position
}

// Error returns a formatted error string.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Position.Line, d.Position.Column, d.Severity, d.Message)
}

// ----------------------------------------------------------------------------
// Line Index
// ----------------------------------------------------------------------------

// LineIndex converts byte offsets to line/column pairs.
type LineIndex struct {
	// lineStarts[i] is the byte offset of the start of line i (0-based).
	lineStarts []int
}

// NewLineIndex builds a line index for the given source.
func NewLineIndex(source string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{lineStarts: starts}
}

// Position converts a byte offset to a 1-based line/column Position.
func (ix *LineIndex) Position(offset int) Position {
	line := sort.Search(len(ix.lineStarts), func(i int) bool {
		return ix.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return Position{
		Offset: offset,
		Line:   line + 1,
		Column: offset - ix.lineStarts[line] + 1,
	}
}

// ----------------------------------------------------------------------------
// Diagnostic List
// ----------------------------------------------------------------------------

// List collects diagnostics during compilation.
type List struct {
	filename    string
	diagnostics []Diagnostic
	lineIndex   *LineIndex
	source      string
	hasErrors   bool
}

// NewList creates a diagnostic list for the given file.
func NewList(filename, source string) *List {
	return &List{
		filename:  filename,
		lineIndex: NewLineIndex(source),
		source:    source,
	}
}

// Add adds a diagnostic to the list.
func (l *List) Add(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
	if d.Severity == Error {
		l.hasErrors = true
	}
}

// AddError adds an error diagnostic at the given byte offset.
func (l *List) AddError(offset int, message string) {
	l.Add(Diagnostic{
		Severity: Error,
		Message:  message,
		Position: l.lineIndex.Position(offset),
	})
}

// AddErrorAt adds an error diagnostic at a known line/column.
func (l *List) AddErrorAt(line, column int, message string) {
	l.Add(Diagnostic{
		Severity: Error,
		Message:  message,
		Position: Position{Line: line, Column: column},
	})
}

// HasErrors returns true if there are any error-level diagnostics.
func (l *List) HasErrors() bool {
	return l.hasErrors
}

// Diagnostics returns all collected diagnostics.
func (l *List) Diagnostics() []Diagnostic {
	return l.diagnostics
}

// Count returns the total number of diagnostics.
func (l *List) Count() int {
	return len(l.diagnostics)
}

// Format formats all diagnostics as a human-readable string, one per line.
func (l *List) Format() string {
	if len(l.diagnostics) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := range l.diagnostics {
		sb.WriteString(l.FormatDiagnostic(&l.diagnostics[i]))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatDiagnostic formats a single diagnostic with source context.
func (l *List) FormatDiagnostic(d *Diagnostic) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s:%d:%d: %s: %s\n",
		l.filename, d.Position.Line, d.Position.Column, d.Severity, d.Message))

	sourceLine := l.getSourceLine(d.Position.Line)
	if sourceLine != "" && d.Position.Column >= 1 {
		sb.WriteString(fmt.Sprintf("    %s\n", sourceLine))
		sb.WriteString(strings.Repeat(" ", d.Position.Column-1+4))
		sb.WriteString("^")
	}

	return sb.String()
}

// getSourceLine returns the source code line at the given 1-based line
// number.
func (l *List) getSourceLine(line int) string {
	if line < 1 || l.source == "" {
		return ""
	}
	lines := strings.Split(l.source, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}
