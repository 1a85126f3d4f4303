package rhythm

import (
	"regexp"
	"strings"
)

// BlockPrefix marks block declarations in a file's extracted name list.
const BlockPrefix = "block:"

var (
	componentDecl = regexp.MustCompile(`@component\(\s*["']([^"']+)["']`)
	blockDecl     = regexp.MustCompile(`@block\(\s*["']([^"']+)["']`)

	// A directive @ is not preceded by a word character, which rules out e-mail addresses.
	partialDirective = regexp.MustCompile(`(^|\W)@\w*$`)
	openPropertyObj  = regexp.MustCompile(`@component\(\s*["'][^"']*["']\s*,\s*\{[^}]*$`)
)

// ExtractDeclarations scans content for component and block declarations.
// Components come first in source order, followed by blocks (prefixed with
// BlockPrefix) in source order. Duplicates are kept.
func ExtractDeclarations(content string) []string {
	var names []string
	for _, m := range componentDecl.FindAllStringSubmatch(content, -1) {
		names = append(names, m[1])
	}
	for _, m := range blockDecl.FindAllStringSubmatch(content, -1) {
		names = append(names, BlockPrefix+m[1])
	}
	return names
}

// SplitDeclaration strips BlockPrefix from an extracted name and reports
// whether it was a block.
func SplitDeclaration(decl string) (name string, isBlock bool) {
	if rest, ok := strings.CutPrefix(decl, BlockPrefix); ok {
		return rest, true
	}
	return decl, false
}

// CompletionContext classifies the cursor position for completion.
type CompletionContext int

const (
	ContextDefault CompletionContext = iota
	ContextDirective
	ContextComponentProperty
	ContextVariable
)

func (c CompletionContext) String() string {
	switch c {
	case ContextDirective:
		return "directive"
	case ContextComponentProperty:
		return "component-property"
	case ContextVariable:
		return "variable"
	default:
		return "default"
	}
}

// ClassifyCompletionContext decides which candidate set applies to the text
// left of the cursor. Directive detection wins over everything else; an open
// component property object and an open {{ expression are checked next.
func ClassifyCompletionContext(prefix string) CompletionContext {
	switch {
	case IsDirectivePrefix(prefix):
		return ContextDirective
	case InComponentProperties(prefix):
		return ContextComponentProperty
	case InExpression(prefix):
		return ContextVariable
	default:
		return ContextDefault
	}
}

// IsDirectivePrefix reports whether the trimmed prefix starts with "@" or the
// cursor sits right after a partial directive name.
func IsDirectivePrefix(prefix string) bool {
	return strings.HasPrefix(strings.TrimSpace(prefix), "@") || partialDirective.MatchString(prefix)
}

// InComponentProperties reports whether the prefix ends inside the property
// object of a @component("name", { ... call.
func InComponentProperties(prefix string) bool {
	return openPropertyObj.MatchString(prefix)
}

// InExpression reports whether the prefix has an opening "{{" with no "}}" after it.
func InExpression(prefix string) bool {
	open := strings.LastIndex(prefix, "{{")
	return open >= 0 && strings.LastIndex(prefix, "}}") < open
}
