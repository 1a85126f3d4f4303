package rhythm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
)

var directiveToken = regexp.MustCompile(`@(\w+)`)

// OpenDirective is an unclosed structural directive on the balance stack.
type OpenDirective struct {
	Name  string
	Range lsp.Range
}

// DirectiveToken is one "@name" occurrence on a line.
type DirectiveToken struct {
	Name    string // without "@"
	Closing bool   // true for @end<name>; Name is then the closed directive
	Range   lsp.Range
}

// ScanDirectives returns the directive tokens of a single line in column order.
// An "@" preceded by a word character (as in an e-mail address) is not a directive.
// Openers are only reported for structural names followed by "(", whitespace
// or the end of the line.
func ScanDirectives(line string, lineNo int) []DirectiveToken {
	var tokens []DirectiveToken
	for _, loc := range directiveToken.FindAllStringSubmatchIndex(line, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isWordByte(line[start-1]) {
			continue
		}
		name := line[loc[2]:loc[3]]
		rng := lsp.LineRange(lineNo, runeCol(line, start), runeCol(line, end))

		if target, ok := strings.CutPrefix(name, "end"); ok && target != "" {
			tokens = append(tokens, DirectiveToken{Name: target, Closing: true, Range: rng})
			continue
		}
		if !IsStructural(name) || !opensBlock(line, end) {
			continue
		}
		tokens = append(tokens, DirectiveToken{Name: name, Range: rng})
	}
	return tokens
}

func opensBlock(line string, end int) bool {
	if end >= len(line) {
		return true
	}
	switch line[end] {
	case '(', ' ', '\t':
		return true
	}
	return false
}

// CheckBalance runs the open/close balance scan over content.
//
// Each @end<name> closes the nearest open @<name> searching from the top of
// the stack, and discards everything opened above it. An @end<name> with no
// match is reported where it appears; whatever is still open at the end is
// reported afterwards, bottom of the stack first.
func CheckBalance(content string) []lsp.Diagnostic {
	var (
		stack []OpenDirective
		diags []lsp.Diagnostic
	)

	for lineNo, line := range Lines(content) {
		if !strings.Contains(line, "@") {
			continue
		}
		for _, tok := range ScanDirectives(line, lineNo) {
			if !tok.Closing {
				stack = append(stack, OpenDirective{Name: tok.Name, Range: tok.Range})
				continue
			}

			k := matchIndex(stack, tok.Name)
			if k < 0 {
				diags = append(diags, lsp.Diagnostic{
					Range:    tok.Range,
					Severity: lsp.SeverityError,
					Source:   lsp.SourceStructure,
					Message:  fmt.Sprintf("Unexpected `@end%s` without matching `@%s`", tok.Name, tok.Name),
				})
				continue
			}
			stack = stack[:k]
		}
	}

	for _, open := range stack {
		diags = append(diags, lsp.Diagnostic{
			Range:    open.Range,
			Severity: lsp.SeverityError,
			Source:   lsp.SourceStructure,
			Message:  fmt.Sprintf("Unclosed `@%s` directive", open.Name),
		})
	}
	return diags
}

// matchIndex returns the highest stack index holding name, or -1.
func matchIndex(stack []OpenDirective, name string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Name == name {
			return i
		}
	}
	return -1
}
