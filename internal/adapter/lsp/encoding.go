package lsp

import (
	"unicode/utf16"

	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
	"github.com/Strob0t/rhythm-ls/internal/domain/rhythm"
)

// The service counts columns in code points. Clients that did not accept
// utf-32 send and expect UTF-16 code units, converted here per line.

// runeColumn maps a UTF-16 column on line to a rune column. Columns past
// the end of the line keep their excess.
func runeColumn(line string, units int) int {
	col := 0
	for _, r := range line {
		if units <= 0 {
			return col
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units < n {
			// Inside a surrogate pair; snap to the rune start.
			return col
		}
		units -= n
		col++
	}
	return col + units
}

// utf16Column maps a rune column on line to UTF-16 code units.
func utf16Column(line string, runes int) int {
	units := 0
	for _, r := range line {
		if runes <= 0 {
			return units
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
		runes--
	}
	return units + runes
}

// lineText returns line n of content, or "" when it does not exist.
func lineText(content string, n int) string {
	line, _ := rhythm.LineAt(content, n)
	return line
}

func positionToUTF16(content string, p lsp.Position) lsp.Position {
	return lsp.Position{Line: p.Line, Character: utf16Column(lineText(content, p.Line), p.Character)}
}

func rangeToUTF16(content string, r lsp.Range) lsp.Range {
	return lsp.Range{Start: positionToUTF16(content, r.Start), End: positionToUTF16(content, r.End)}
}
