// Package lsp defines editor-facing result types for the Rhythm language
// service. They follow Language Server Protocol shapes in a
// transport-independent way for use across the service, adapter, and handler layers.
package lsp

// Position in a text document (0-based line and character).
// Character counts Unicode code points within the line.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document. End is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos lies inside the half-open range.
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character >= r.End.Character {
		return false
	}
	return true
}

// LineRange returns a single-line range covering [start, end).
func LineRange(line, start, end int) Range {
	return Range{
		Start: Position{Line: line, Character: start},
		End:   Position{Line: line, Character: end},
	}
}

// Severity mirrors LSP DiagnosticSeverity.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic sources.
const (
	SourceCompiler  = "rhythm-compiler"
	SourceStructure = "rhythm-structure"
)

// Diagnostic represents a compiler or structural diagnostic.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Severity Severity `json:"severity"` // 1=Error, 2=Warning, 3=Info, 4=Hint
	Source   string   `json:"source"`
	Message  string   `json:"message"`
}

// HoverInfo contains hover information for a position.
// A nil Range means the span is unspecified.
type HoverInfo struct {
	Contents []string `json:"contents"`
	Range    *Range   `json:"range,omitempty"`
}

// CompletionItemKind mirrors the LSP CompletionItemKind enum.
type CompletionItemKind int

const (
	KindText      CompletionItemKind = 1
	KindClass     CompletionItemKind = 7
	KindVariable  CompletionItemKind = 6
	KindModule    CompletionItemKind = 9
	KindProperty  CompletionItemKind = 10
	KindKeyword   CompletionItemKind = 14
	KindSnippet   CompletionItemKind = 15
	KindReference CompletionItemKind = 18
)

// CompletionItem is a single completion candidate. InsertText may contain
// snippet placeholders such as ${1:name} or $0.
type CompletionItem struct {
	Label         string             `json:"label"`
	Kind          CompletionItemKind `json:"kind"`
	Detail        string             `json:"detail,omitempty"`
	Documentation string             `json:"documentation,omitempty"`
	InsertText    string             `json:"insertText"`
}

// IsSnippet reports whether InsertText carries placeholder markers.
func (c CompletionItem) IsSnippet() bool {
	return hasPlaceholders(c.InsertText)
}

// PlainText returns a copy of the item with placeholders stripped from InsertText.
func (c CompletionItem) PlainText() CompletionItem {
	c.InsertText = StripPlaceholders(c.InsertText)
	return c
}
