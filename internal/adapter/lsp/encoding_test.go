package lsp

import (
	"testing"

	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
)

func TestColumnConversion(t *testing.T) {
	line := "a\U0001F600b@c"

	tests := []struct {
		units, runes int
	}{
		{0, 0},
		{1, 1},
		{3, 2},
		{4, 3},
		{5, 4},
		{6, 5},
		{9, 8}, // past the end
	}
	for _, tt := range tests {
		if got := runeColumn(line, tt.units); got != tt.runes {
			t.Errorf("runeColumn(%d) = %d, want %d", tt.units, got, tt.runes)
		}
		if got := utf16Column(line, tt.runes); got != tt.units {
			t.Errorf("utf16Column(%d) = %d, want %d", tt.runes, got, tt.units)
		}
	}

	// Unit 2 falls between the surrogates of the emoji.
	if got := runeColumn(line, 2); got != 1 {
		t.Errorf("runeColumn(2) = %d, want 1", got)
	}
}

func TestRangeToUTF16(t *testing.T) {
	content := "plain\n\U0001F600\U0001F600 @if(x)\n"
	got := rangeToUTF16(content, lsp.LineRange(1, 3, 6))
	want := lsp.LineRange(1, 5, 8)
	if got != want {
		t.Errorf("rangeToUTF16 = %+v, want %+v", got, want)
	}
	if got := positionToUTF16(content, lsp.Position{Line: 0, Character: 2}); got.Character != 2 {
		t.Errorf("ascii line = %+v", got)
	}
}
