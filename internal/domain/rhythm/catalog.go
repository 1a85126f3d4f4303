// Package rhythm holds the static knowledge and pure analysis functions of the
// Rhythm template language: the directive catalog, declaration extraction,
// completion-context classification, structural balance checking and hover
// token resolution. Nothing here performs I/O or holds mutable state.
package rhythm

import (
	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
)

// structural lists directives that must be closed by a matching @end<name>.
var structural = map[string]bool{
	"if":        true,
	"section":   true,
	"block":     true,
	"component": true,
	"each":      true,
	"loop":      true,
	"ai":        true,
	"style":     true,
}

// IsStructural reports whether the directive name (without "@") opens a block
// that needs an @end<name>.
func IsStructural(name string) bool {
	return structural[name]
}

// StructuralDirectives returns the structural directive names.
func StructuralDirectives() []string {
	return []string{"if", "section", "block", "component", "each", "loop", "ai", "style"}
}

var directives = []lsp.CompletionItem{
	{
		Label:         "@extends",
		Kind:          lsp.KindKeyword,
		Detail:        "Extend a layout",
		Documentation: "Renders this template inside the given layout. Sections declared here fill the layout's @yield slots.",
		InsertText:    `@extends("${1:layout/base.rhy}")`,
	},
	{
		Label:         "@section",
		Kind:          lsp.KindSnippet,
		Detail:        "Define a section",
		Documentation: "Declares named content that a parent layout renders with @yield. Closed by @endsection.",
		InsertText:    "@section(\"${1:content}\")\n\t$0\n@endsection",
	},
	{
		Label:         "@endsection",
		Kind:          lsp.KindKeyword,
		Detail:        "Close a section",
		Documentation: "Ends the nearest open @section.",
		InsertText:    "@endsection",
	},
	{
		Label:         "@yield",
		Kind:          lsp.KindKeyword,
		Detail:        "Render a section",
		Documentation: "Outputs the content of the named section supplied by a child template.",
		InsertText:    `@yield("${1:content}")`,
	},
	{
		Label:         "@block",
		Kind:          lsp.KindSnippet,
		Detail:        "Define a reusable block",
		Documentation: "Declares a named block of markup that other templates can reuse. Closed by @endblock.",
		InsertText:    "@block(\"${1:name}\")\n\t$0\n@endblock",
	},
	{
		Label:         "@endblock",
		Kind:          lsp.KindKeyword,
		Detail:        "Close a block",
		Documentation: "Ends the nearest open @block.",
		InsertText:    "@endblock",
	},
	{
		Label:         "@component",
		Kind:          lsp.KindSnippet,
		Detail:        "Render a component",
		Documentation: "Renders a named component with an optional property object, e.g. @component(\"card\", { title: \"Hi\" }). Closed by @endcomponent.",
		InsertText:    "@component(\"${1:name}\", { ${2} })\n\t$0\n@endcomponent",
	},
	{
		Label:         "@endcomponent",
		Kind:          lsp.KindKeyword,
		Detail:        "Close a component",
		Documentation: "Ends the nearest open @component.",
		InsertText:    "@endcomponent",
	},
	{
		Label:         "@include",
		Kind:          lsp.KindKeyword,
		Detail:        "Include a partial",
		Documentation: "Inlines another template file at this position.",
		InsertText:    `@include("${1:partials/header.rhy}")`,
	},
	{
		Label:         "@use",
		Kind:          lsp.KindKeyword,
		Detail:        "Use a theme or asset bundle",
		Documentation: "Pulls a theme or asset bundle into the rendered page.",
		InsertText:    `@use("${1:theme/main}")`,
	},
	{
		Label:         "@if",
		Kind:          lsp.KindSnippet,
		Detail:        "Conditional block",
		Documentation: "Renders its body when the condition is truthy. Supports @elseif and @else. Closed by @endif.",
		InsertText:    "@if(${1:condition})\n\t$0\n@endif",
	},
	{
		Label:         "@elseif",
		Kind:          lsp.KindKeyword,
		Detail:        "Alternative condition",
		Documentation: "Adds another condition to the enclosing @if.",
		InsertText:    "@elseif(${1:condition})",
	},
	{
		Label:         "@else",
		Kind:          lsp.KindKeyword,
		Detail:        "Fallback branch",
		Documentation: "Rendered when no previous @if or @elseif condition matched.",
		InsertText:    "@else",
	},
	{
		Label:         "@endif",
		Kind:          lsp.KindKeyword,
		Detail:        "Close a conditional",
		Documentation: "Ends the nearest open @if.",
		InsertText:    "@endif",
	},
	{
		Label:         "@each",
		Kind:          lsp.KindSnippet,
		Detail:        "Iterate a collection",
		Documentation: "Renders its body once per element, binding the element to the loop variable. Closed by @endeach.",
		InsertText:    "@each(${1:item} in ${2:items})\n\t$0\n@endeach",
	},
	{
		Label:         "@endeach",
		Kind:          lsp.KindKeyword,
		Detail:        "Close an iteration",
		Documentation: "Ends the nearest open @each.",
		InsertText:    "@endeach",
	},
	{
		Label:         "@loop",
		Kind:          lsp.KindSnippet,
		Detail:        "Counted loop",
		Documentation: "Repeats its body a fixed number of times. Closed by @endloop.",
		InsertText:    "@loop(${1:3})\n\t$0\n@endloop",
	},
	{
		Label:         "@endloop",
		Kind:          lsp.KindKeyword,
		Detail:        "Close a loop",
		Documentation: "Ends the nearest open @loop.",
		InsertText:    "@endloop",
	},
	{
		Label:         "@ai",
		Kind:          lsp.KindSnippet,
		Detail:        "AI-generated content",
		Documentation: "Asks the AI engine to produce content for the given task (e.g. \"summarize\"), using the body as instructions. Closed by @endai.",
		InsertText:    "@ai(\"${1:summarize}\")\n\t$0\n@endai",
	},
	{
		Label:         "@endai",
		Kind:          lsp.KindKeyword,
		Detail:        "Close an AI block",
		Documentation: "Ends the nearest open @ai.",
		InsertText:    "@endai",
	},
	{
		Label:         "@style",
		Kind:          lsp.KindSnippet,
		Detail:        "Scoped styles",
		Documentation: "Embeds CSS scoped to the current template. Closed by @endstyle.",
		InsertText:    "@style\n\t$0\n@endstyle",
	},
	{
		Label:         "@endstyle",
		Kind:          lsp.KindKeyword,
		Detail:        "Close a style block",
		Documentation: "Ends the nearest open @style.",
		InsertText:    "@endstyle",
	},
}

var variables = []lsp.CompletionItem{
	{
		Label:         "user",
		Kind:          lsp.KindVariable,
		Detail:        "Current user",
		Documentation: "The signed-in user: name, email, role and isLoggedIn.",
		InsertText:    "user",
	},
	{
		Label:         "page",
		Kind:          lsp.KindVariable,
		Detail:        "Current page",
		Documentation: "Metadata of the page being rendered: title, path and params.",
		InsertText:    "page",
	},
	{
		Label:         "site",
		Kind:          lsp.KindVariable,
		Detail:        "Site settings",
		Documentation: "Site-wide settings: name, url and theme.",
		InsertText:    "site",
	},
	{
		Label:         "request",
		Kind:          lsp.KindVariable,
		Detail:        "HTTP request",
		Documentation: "The incoming request: method, path, query and headers.",
		InsertText:    "request",
	},
}

var componentProperties = []lsp.CompletionItem{
	{Label: "title", Kind: lsp.KindProperty, Detail: "Component title", InsertText: `title: "${1}"`},
	{Label: "className", Kind: lsp.KindProperty, Detail: "CSS class names", InsertText: `className: "${1}"`},
	{Label: "id", Kind: lsp.KindProperty, Detail: "Element id", InsertText: `id: "${1}"`},
	{Label: "style", Kind: lsp.KindProperty, Detail: "Inline styles", InsertText: `style: "${1}"`},
}

// Directives returns a copy of the directive catalog in declaration order.
func Directives() []lsp.CompletionItem {
	return append([]lsp.CompletionItem(nil), directives...)
}

// ContextVariables returns a copy of the predefined expression variables.
func ContextVariables() []lsp.CompletionItem {
	return append([]lsp.CompletionItem(nil), variables...)
}

// ComponentProperties returns a copy of the property-object completions.
func ComponentProperties() []lsp.CompletionItem {
	return append([]lsp.CompletionItem(nil), componentProperties...)
}

// LookupDirective finds a catalog directive by label, e.g. "@if".
func LookupDirective(label string) (lsp.CompletionItem, bool) {
	for _, d := range directives {
		if d.Label == label {
			return d, true
		}
	}
	return lsp.CompletionItem{}, false
}

// LookupVariable finds a context variable by name, e.g. "user".
func LookupVariable(name string) (lsp.CompletionItem, bool) {
	for _, v := range variables {
		if v.Label == name {
			return v, true
		}
	}
	return lsp.CompletionItem{}, false
}
