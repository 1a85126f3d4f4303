package lsp

import (
	"regexp"
	"strings"
)

// Snippet placeholders: $1, $0, ${1}, ${1:default}, ${1|a,b|}.
var (
	placeholderDefault = regexp.MustCompile(`\$\{\d+:([^}]*)\}`)
	placeholderChoice  = regexp.MustCompile(`\$\{\d+\|([^,|}]*)[^}]*\|\}`)
	placeholderBare    = regexp.MustCompile(`\$\{\d+\}|\$\d+`)
)

func hasPlaceholders(s string) bool {
	return strings.Contains(s, "$") &&
		(placeholderDefault.MatchString(s) || placeholderChoice.MatchString(s) || placeholderBare.MatchString(s))
}

// StripPlaceholders converts snippet text to plain text for hosts that do not
// support snippet expansion. Defaults and the first choice are kept; bare tab
// stops are removed.
func StripPlaceholders(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	s = placeholderDefault.ReplaceAllString(s, "$1")
	s = placeholderChoice.ReplaceAllString(s, "$1")
	return placeholderBare.ReplaceAllString(s, "")
}
