package rhythm

import (
	"strings"
	"unicode/utf8"
)

// Lines splits content into lines. A trailing "\r" is dropped from each line
// so CRLF documents report the same columns as LF documents.
func Lines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// LineAt returns line n (0-based) of content.
func LineAt(content string, n int) (string, bool) {
	if n < 0 {
		return "", false
	}
	lines := Lines(content)
	if n >= len(lines) {
		return "", false
	}
	return lines[n], true
}

// PrefixAt returns the part of line before rune column ch. Columns past the
// end of the line are clamped.
func PrefixAt(line string, ch int) string {
	if ch <= 0 {
		return ""
	}
	i := 0
	for byteIdx := range line {
		if i == ch {
			return line[:byteIdx]
		}
		i++
	}
	return line
}

// runeCol converts a byte offset within line to a rune column.
func runeCol(line string, byteIdx int) int {
	return utf8.RuneCountInString(line[:byteIdx])
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
