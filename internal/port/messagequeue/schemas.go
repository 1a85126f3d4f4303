package messagequeue

import "github.com/Strob0t/rhythm-ls/internal/domain/lsp"

// FileChangedPayload is the schema for rhythm.files.changed messages.
// A nil Content asks the service to read the file itself.
type FileChangedPayload struct {
	Path    string  `json:"path"`
	Content *string `json:"content,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
}

// DiagnosticsPayload is the schema for rhythm.diagnostics messages.
type DiagnosticsPayload struct {
	Path        string           `json:"path"`
	Diagnostics []lsp.Diagnostic `json:"diagnostics"`
}
