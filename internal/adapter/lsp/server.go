// Package lsp serves the Rhythm language service to editors as a Language
// Server Protocol server over stdio, using JSON-RPC 2.0 with Content-Length framing.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
	"github.com/Strob0t/rhythm-ls/internal/port/messagequeue"
	"github.com/Strob0t/rhythm-ls/internal/service"
)

// ErrExitWithoutShutdown is returned by Serve when the client sent exit
// before shutdown. Hosts should exit with status 1.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// positionEncodingUTF32 is offered when the client supports it; characters
// are counted in code points everywhere in the service.
const positionEncodingUTF32 = "utf-32"

// Options configures a Server.
type Options struct {
	// Root is the absolute workspace root. URIs below it map to root-relative paths.
	Root string
	// Extension marks template files. Empty means lsp.DefaultExtension.
	Extension string
	Name      string
	Version   string
}

// Server answers one editor connection.
type Server struct {
	conn   *JSONRPCConn
	lang   *service.LanguageService
	events *service.FileEvents
	opts   Options

	snippets bool
	utf32    bool
	shutdown bool

	// open holds the URIs opened as templates. Changes to any other
	// document are ignored.
	open map[string]bool
}

// NewServer creates a server reading requests from r and writing to w.
func NewServer(r io.Reader, w io.Writer, lang *service.LanguageService, events *service.FileEvents, opts Options) *Server {
	if opts.Extension == "" {
		opts.Extension = lsp.DefaultExtension
	}
	return &Server{
		conn:   NewJSONRPCConn(r, w),
		lang:   lang,
		events: events,
		opts:   opts,
		open:   make(map[string]bool),
	}
}

// Serve processes messages in arrival order until exit or end of input.
func (s *Server) Serve(ctx context.Context) error {
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, errMalformed) {
				slog.WarnContext(ctx, "lsp: malformed message", "error", err)
				_ = s.conn.ReplyError(nil, CodeParseError, "parse error")
				continue
			}
			if errors.Is(err, io.EOF) {
				slog.InfoContext(ctx, "lsp: input closed")
				return nil
			}
			return fmt.Errorf("lsp read: %w", err)
		}

		if msg.Method == "exit" {
			if !s.shutdown {
				return ErrExitWithoutShutdown
			}
			return nil
		}
		s.dispatch(ctx, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, msg *JSONRPCMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "lsp: recovered panic", "method", msg.Method, "panic", r)
			if msg.IsRequest() {
				_ = s.conn.ReplyError(msg.ID, CodeInternalError, "internal error")
			}
		}
	}()

	if !msg.IsRequest() {
		s.notification(ctx, msg)
		return
	}

	if s.shutdown {
		s.replyError(ctx, msg, CodeInvalidRequest, "server is shutting down")
		return
	}

	var (
		result any
		err    error
	)
	switch msg.Method {
	case "initialize":
		result, err = s.initialize(ctx, msg.Params)
	case "shutdown":
		s.shutdown = true
	case "textDocument/completion":
		result, err = s.completion(ctx, msg.Params)
	case "textDocument/hover":
		result, err = s.hover(ctx, msg.Params)
	default:
		s.replyError(ctx, msg, CodeMethodNotFound, "method not found: "+msg.Method)
		return
	}
	if err != nil {
		s.replyError(ctx, msg, CodeInvalidParams, err.Error())
		return
	}
	if err := s.conn.Reply(msg.ID, result); err != nil {
		slog.ErrorContext(ctx, "lsp: reply failed", "method", msg.Method, "error", err)
	}
}

func (s *Server) replyError(ctx context.Context, msg *JSONRPCMessage, code int, message string) {
	if err := s.conn.ReplyError(msg.ID, code, message); err != nil {
		slog.ErrorContext(ctx, "lsp: reply failed", "method", msg.Method, "error", err)
	}
}

// notification handles messages that expect no response. Malformed
// notifications are logged and dropped.
func (s *Server) notification(ctx context.Context, msg *JSONRPCMessage) {
	var err error
	switch msg.Method {
	case "textDocument/didOpen":
		var p didOpenParams
		if p, err = decodeParams[didOpenParams](msg.Params); err == nil && s.isRhythm(p.TextDocument) {
			s.open[p.TextDocument.URI] = true
			s.sync(ctx, p.TextDocument.URI, &p.TextDocument.Text)
		}
	case "textDocument/didChange":
		var p didChangeParams
		if p, err = decodeParams[didChangeParams](msg.Params); err == nil && s.open[p.TextDocument.URI] && len(p.ContentChanges) > 0 {
			s.sync(ctx, p.TextDocument.URI, &p.ContentChanges[len(p.ContentChanges)-1].Text)
		}
	case "textDocument/didSave":
		var p didSaveParams
		if p, err = decodeParams[didSaveParams](msg.Params); err == nil && s.open[p.TextDocument.URI] {
			s.sync(ctx, p.TextDocument.URI, p.Text)
		}
	case "textDocument/didClose":
		var p didCloseParams
		if p, err = decodeParams[didCloseParams](msg.Params); err == nil {
			// The file still exists on disk, so its entry stays cached.
			delete(s.open, p.TextDocument.URI)
		}
	case "initialized":
	default:
		slog.DebugContext(ctx, "lsp: ignoring notification", "method", msg.Method)
	}
	if err != nil {
		slog.WarnContext(ctx, "lsp: bad notification params", "method", msg.Method, "error", err)
	}
}

func (s *Server) initialize(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[initializeParams](raw)
	if err != nil {
		return nil, err
	}
	s.snippets = p.Capabilities.TextDocument.Completion.CompletionItem.SnippetSupport

	res, err := s.events.Index(ctx)
	if err != nil {
		// The editor still gets a working server over the documents it opens.
		slog.WarnContext(ctx, "lsp: workspace index failed", "error", err)
	} else {
		slog.InfoContext(ctx, "lsp: initialized", "files", res.Loaded, "snippets", s.snippets)
	}

	caps := serverCapabilities{
		TextDocumentSync: textDocumentSync{
			OpenClose: true,
			Change:    syncFull,
			Save:      saveOptions{IncludeText: true},
		},
		CompletionProvider: completionProvider{TriggerCharacters: []string{"@", "{", "."}},
		HoverProvider:      true,
	}
	for _, enc := range p.Capabilities.General.PositionEncodings {
		if enc == positionEncodingUTF32 {
			caps.PositionEncoding = positionEncodingUTF32
			s.utf32 = true
		}
	}
	if !s.utf32 {
		slog.InfoContext(ctx, "lsp: client lacks utf-32, converting utf-16 columns")
	}
	return initializeResult{
		Capabilities: caps,
		ServerInfo:   serverInfo{Name: s.opts.Name, Version: s.opts.Version},
	}, nil
}

// sync stores the document and publishes its diagnostics. A nil text re-reads the file.
func (s *Server) sync(ctx context.Context, uri string, text *string) {
	path := s.pathFromURI(uri)
	out, err := s.events.Apply(ctx, messagequeue.FileChangedPayload{Path: path, Content: text})
	if err != nil {
		slog.WarnContext(ctx, "lsp: document sync failed", "uri", uri, "error", err)
		return
	}
	diags := out.Diagnostics
	if !s.utf32 {
		// out was also broadcast; convert a copy.
		diags = slices.Clone(diags)
		entry, _ := s.lang.Cache().Entry(path)
		for i := range diags {
			diags[i].Range = rangeToUTF16(entry.Content, diags[i].Range)
		}
	}
	if err := s.conn.Notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	}); err != nil {
		slog.ErrorContext(ctx, "lsp: publish diagnostics failed", "uri", uri, "error", err)
	}
}

func (s *Server) completion(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[textDocumentPositionParams](raw)
	if err != nil {
		return nil, err
	}
	path := s.pathFromURI(p.TextDocument.URI)
	pos, _ := s.incoming(path, p.Position)
	items := s.lang.GetCompletions(ctx, path, pos.Line, pos.Character)

	out := make([]completionItem, 0, len(items))
	for _, it := range items {
		format := formatPlainText
		if it.IsSnippet() {
			if s.snippets {
				format = formatSnippet
			} else {
				it = it.PlainText()
			}
		}
		out = append(out, completionItem{
			Label:            it.Label,
			Kind:             it.Kind,
			Detail:           it.Detail,
			Documentation:    it.Documentation,
			InsertText:       it.InsertText,
			InsertTextFormat: format,
		})
	}
	return out, nil
}

func (s *Server) hover(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decodeParams[textDocumentPositionParams](raw)
	if err != nil {
		return nil, err
	}
	path := s.pathFromURI(p.TextDocument.URI)
	pos, content := s.incoming(path, p.Position)
	info := s.lang.GetHoverInfo(ctx, path, pos.Line, pos.Character)
	if info == nil {
		return nil, nil
	}
	rng := info.Range
	if rng != nil && !s.utf32 {
		r := rangeToUTF16(content, *rng)
		rng = &r
	}
	return hover{
		Contents: markupContent{Kind: "markdown", Value: strings.Join(info.Contents, "\n\n")},
		Range:    rng,
	}, nil
}

// incoming converts a client position to rune columns and returns the
// cached content it was resolved against.
func (s *Server) incoming(path string, pos lsp.Position) (lsp.Position, string) {
	if s.utf32 {
		return pos, ""
	}
	entry, _ := s.lang.Cache().Entry(path)
	pos.Character = runeColumn(lineText(entry.Content, pos.Line), pos.Character)
	return pos, entry.Content
}

// isRhythm reports whether an opened document is a template, by language
// ID or by the configured extension.
func (s *Server) isRhythm(doc textDocumentItem) bool {
	return doc.LanguageID == lsp.LanguageID || lsp.HasExtension(doc.URI, s.opts.Extension)
}

// pathFromURI maps a file URI to a cache path, relative to the workspace
// root when the file lies below it. Anything else is used verbatim.
func (s *Server) pathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	p := filepath.FromSlash(u.Path)
	if s.opts.Root == "" {
		return p
	}
	rel, err := filepath.Rel(s.opts.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}
