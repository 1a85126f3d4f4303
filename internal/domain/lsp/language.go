package lsp

import (
	"path/filepath"
	"strings"
)

// LanguageID is the identifier editors use for Rhythm documents.
const LanguageID = "rhythm"

// DefaultExtension is the file extension of Rhythm templates.
const DefaultExtension = ".rhy"

// HasExtension reports whether path ends in ext, ignoring case.
// An empty ext matches every path.
func HasExtension(path, ext string) bool {
	if ext == "" {
		return true
	}
	return strings.EqualFold(filepath.Ext(path), ext)
}
