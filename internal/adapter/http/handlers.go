// Package http exposes the language service as a JSON API.
package http

import (
	"net/http"

	"github.com/Strob0t/rhythm-ls/internal/port/messagequeue"
	"github.com/Strob0t/rhythm-ls/internal/service"
)

// Version is reported by GET /api/v1/.
const Version = "0.1.0"

// Handlers holds the services the HTTP API delegates to.
type Handlers struct {
	Lang   *service.LanguageService
	Events *service.FileEvents

	// Checks report dependency health on /health; a false result marks the service degraded.
	Checks map[string]func() bool
	// Clients counts connected push clients. Optional.
	Clients func() int
}

type fileRequest struct {
	Path    string  `json:"path"`
	Content *string `json:"content,omitempty"`
}

type evictResponse struct {
	Path    string `json:"path"`
	Removed bool   `json:"removed"`
}

type aggregatesResponse struct {
	Components []string `json:"components"`
	Blocks     []string `json:"blocks"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	CachedFiles int               `json:"cached_files"`
	WSClients   int               `json:"ws_clients"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// Health reports liveness plus the configured dependency checks.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", CachedFiles: h.Lang.Cache().Len()}
	if h.Clients != nil {
		resp.WSClients = h.Clients()
	}
	if len(h.Checks) > 0 {
		resp.Checks = make(map[string]string, len(h.Checks))
		for name, check := range h.Checks {
			if check() {
				resp.Checks[name] = "ok"
				continue
			}
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateFile stores a file (or re-reads it when content is omitted) and
// returns its diagnostics.
func (h *Handlers) UpdateFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[fileRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}

	out, err := h.Events.Apply(r.Context(), messagequeue.FileChangedPayload{Path: req.Path, Content: req.Content})
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// EvictFile drops a file from the cache.
func (h *Handlers) EvictFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if !requireField(w, path, "path") {
		return
	}
	writeJSON(w, http.StatusOK, evictResponse{Path: path, Removed: h.Events.Evict(r.Context(), path)})
}

// ListFiles returns the cached paths.
func (h *Handlers) ListFiles(w http.ResponseWriter, _ *http.Request) {
	paths := h.Lang.Cache().Paths()
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, paths)
}

// Completions returns the completion candidates at a position.
func (h *Handlers) Completions(w http.ResponseWriter, r *http.Request) {
	path, line, character, ok := position(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Lang.GetCompletions(r.Context(), path, line, character))
}

// Diagnostics returns the diagnostics for a cached file or for the given content.
func (h *Handlers) Diagnostics(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[fileRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Path, "path") {
		return
	}
	writeJSON(w, http.StatusOK, messagequeue.DiagnosticsPayload{
		Path:        req.Path,
		Diagnostics: h.Lang.GetDiagnostics(r.Context(), req.Path, req.Content),
	})
}

// Hover describes the token at a position. The body is null when there is nothing to show.
func (h *Handlers) Hover(w http.ResponseWriter, r *http.Request) {
	path, line, character, ok := position(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Lang.GetHoverInfo(r.Context(), path, line, character))
}

// Initialize re-indexes the workspace.
func (h *Handlers) Initialize(w http.ResponseWriter, r *http.Request) {
	res, err := h.Events.Index(r.Context())
	if err != nil {
		writeDomainError(w, err, "workspace not available")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Aggregates returns the known component and block names.
func (h *Handlers) Aggregates(w http.ResponseWriter, _ *http.Request) {
	components, blocks := h.Lang.Cache().Aggregates()
	if components == nil {
		components = []string{}
	}
	if blocks == nil {
		blocks = []string{}
	}
	writeJSON(w, http.StatusOK, aggregatesResponse{Components: components, Blocks: blocks})
}
