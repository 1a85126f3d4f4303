package lsp

import "testing"

func TestRangeContains(t *testing.T) {
	r := LineRange(2, 3, 7)
	tests := []struct {
		pos  Position
		want bool
	}{
		{Position{2, 3}, true},
		{Position{2, 6}, true},
		{Position{2, 7}, false},
		{Position{2, 2}, false},
		{Position{1, 4}, false},
		{Position{3, 4}, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.pos); got != tt.want {
			t.Errorf("Contains(%+v) = %v, want %v", tt.pos, got, tt.want)
		}
	}

	multi := Range{Start: Position{1, 5}, End: Position{3, 2}}
	if !multi.Contains(Position{2, 0}) {
		t.Error("middle line should be inside a multi-line range")
	}
}

func TestSeverityString(t *testing.T) {
	tests := map[Severity]string{
		SeverityError:       "error",
		SeverityWarning:     "warning",
		SeverityInformation: "information",
		SeverityHint:        "hint",
		Severity(0):         "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestHasExtension(t *testing.T) {
	if !HasExtension("templates/Home.RHY", DefaultExtension) {
		t.Error("extension match should ignore case")
	}
	if !HasExtension("a/b.txt", "") {
		t.Error("empty extension should match everything")
	}
	if HasExtension("a/b.txt", ".rhy") {
		t.Error(".txt should not match .rhy")
	}
}
