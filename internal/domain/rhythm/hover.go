package rhythm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
)

var (
	componentCall = regexp.MustCompile(`@component\(\s*["']([^"']*)["']`)
	expression    = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)
)

// ResolveHover finds the hover target under rune column character of line.
// Directive tokens are tried first, then component names, then the leading
// identifier of a {{ }} expression. Returns nil when nothing matches.
func ResolveHover(line string, lineNo, character int) *lsp.HoverInfo {
	if h := hoverDirective(line, lineNo, character); h != nil {
		return h
	}
	if h := hoverComponent(line, lineNo, character); h != nil {
		return h
	}
	return hoverExpression(line, lineNo, character)
}

func within(ch, start, end int) bool {
	return ch >= start && ch < end
}

func hoverDirective(line string, lineNo, ch int) *lsp.HoverInfo {
	for _, loc := range directiveToken.FindAllStringIndex(line, -1) {
		start, end := runeCol(line, loc[0]), runeCol(line, loc[1])
		if !within(ch, start, end) {
			continue
		}
		d, ok := LookupDirective(line[loc[0]:loc[1]])
		if !ok {
			return nil
		}
		rng := lsp.LineRange(lineNo, start, end)
		return &lsp.HoverInfo{Contents: describe(d.Label, d.Detail, d.Documentation), Range: &rng}
	}
	return nil
}

func hoverComponent(line string, lineNo, ch int) *lsp.HoverInfo {
	for _, loc := range componentCall.FindAllStringSubmatchIndex(line, -1) {
		start, end := runeCol(line, loc[2]), runeCol(line, loc[3])
		if start == end || !within(ch, start, end) {
			continue
		}
		name := line[loc[2]:loc[3]]
		rng := lsp.LineRange(lineNo, start, end)
		return &lsp.HoverInfo{Contents: []string{fmt.Sprintf("Component: `%s`", name)}, Range: &rng}
	}
	return nil
}

func hoverExpression(line string, lineNo, ch int) *lsp.HoverInfo {
	for _, loc := range expression.FindAllStringSubmatchIndex(line, -1) {
		bodyStart, bodyEnd := runeCol(line, loc[2]), runeCol(line, loc[3])
		if bodyStart == bodyEnd || !within(ch, bodyStart, bodyEnd) {
			continue
		}
		body := line[loc[2]:loc[3]]
		ident, _, _ := strings.Cut(body, ".")
		v, ok := LookupVariable(ident)
		if !ok {
			return nil
		}
		rng := lsp.LineRange(lineNo, bodyStart, bodyStart+len([]rune(ident)))
		return &lsp.HoverInfo{Contents: describe(v.Label, v.Detail, v.Documentation), Range: &rng}
	}
	return nil
}

func describe(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
