package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/rhythm-ls/internal/adapter/localfs"
	"github.com/Strob0t/rhythm-ls/internal/domain/lsp"
	"github.com/Strob0t/rhythm-ls/internal/service"
)

type session struct {
	t      *testing.T
	client *JSONRPCConn
	in     *io.PipeWriter
	lang   *service.LanguageService
	root   string
	done   chan error
	nextID int
}

func startSession(t *testing.T) *session {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "card.rhy"), []byte("@component(\"card\", {})\n@endcomponent\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := localfs.New(root)
	if err != nil {
		t.Fatal(err)
	}
	lang := service.NewLanguageService(service.NewFileCache(), files, nil)
	events := service.NewFileEvents(lang, nil, nil)

	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	srv := NewServer(serverIn, serverOut, lang, events, Options{Root: files.Root(), Name: "rhythm-ls", Version: "test"})
	s := &session{
		t:      t,
		client: NewJSONRPCConn(clientIn, clientOut),
		in:     clientOut,
		lang:   lang,
		root:   files.Root(),
		done:   make(chan error, 1),
	}
	go func() {
		s.done <- srv.Serve(context.Background())
		_ = serverOut.Close()
	}()
	t.Cleanup(func() {
		_ = clientOut.Close()
		_ = clientIn.Close()
	})
	return s
}

func (s *session) uri(name string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.root, name))
}

func (s *session) read() *JSONRPCMessage {
	s.t.Helper()
	type result struct {
		msg *JSONRPCMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := s.client.ReadMessage()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			s.t.Fatalf("read: %v", r.err)
		}
		return r.msg
	case <-time.After(5 * time.Second):
		s.t.Fatal("timed out waiting for server message")
		return nil
	}
}

func (s *session) request(method string, params any) *JSONRPCMessage {
	s.t.Helper()
	s.nextID++
	if err := s.client.Send(s.nextID, method, params); err != nil {
		s.t.Fatalf("send %s: %v", method, err)
	}
	return s.read()
}

func (s *session) notify(method string, params any) {
	s.t.Helper()
	if err := s.client.Notify(method, params); err != nil {
		s.t.Fatalf("notify %s: %v", method, err)
	}
}

func (s *session) initialize(snippets bool) initializeResult {
	s.t.Helper()
	return s.initializeWith(snippets, []string{"utf-16", "utf-32"})
}

func (s *session) initializeWith(snippets bool, encodings []string) initializeResult {
	s.t.Helper()
	params := map[string]any{
		"capabilities": map[string]any{
			"general": map[string]any{"positionEncodings": encodings},
			"textDocument": map[string]any{
				"completion": map[string]any{"completionItem": map[string]any{"snippetSupport": snippets}},
			},
		},
	}
	resp := s.request("initialize", params)
	if resp.Error != nil {
		s.t.Fatalf("initialize error: %v", resp.Error)
	}
	var res initializeResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		s.t.Fatal(err)
	}
	s.notify("initialized", struct{}{})
	return res
}

func (s *session) open(name, text string) publishDiagnosticsParams {
	s.t.Helper()
	s.notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{"uri": s.uri(name), "languageId": "rhythm", "version": 1, "text": text},
	})
	msg := s.read()
	if msg.Method != "textDocument/publishDiagnostics" {
		s.t.Fatalf("expected publishDiagnostics, got %+v", msg)
	}
	var p publishDiagnosticsParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		s.t.Fatal(err)
	}
	return p
}

func (s *session) shutdownAndExit() error {
	s.t.Helper()
	if resp := s.request("shutdown", nil); resp.Error != nil {
		s.t.Fatalf("shutdown error: %v", resp.Error)
	}
	s.notify("exit", nil)
	select {
	case err := <-s.done:
		return err
	case <-time.After(5 * time.Second):
		s.t.Fatal("server did not exit")
		return nil
	}
}

func TestInitializeIndexesWorkspace(t *testing.T) {
	s := startSession(t)
	res := s.initialize(true)

	if !res.Capabilities.HoverProvider || res.Capabilities.TextDocumentSync.Change != syncFull {
		t.Errorf("capabilities = %+v", res.Capabilities)
	}
	if res.Capabilities.PositionEncoding != positionEncodingUTF32 {
		t.Errorf("position encoding = %q", res.Capabilities.PositionEncoding)
	}
	if res.ServerInfo.Name != "rhythm-ls" {
		t.Errorf("server info = %+v", res.ServerInfo)
	}

	components, _ := s.lang.Cache().Aggregates()
	if len(components) != 1 || components[0] != "card" {
		t.Errorf("components = %v", components)
	}

	if err := s.shutdownAndExit(); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

func TestDidOpenPublishesDiagnostics(t *testing.T) {
	s := startSession(t)
	s.initialize(true)

	p := s.open("page.rhy", "@if(user)\n")
	if p.URI != s.uri("page.rhy") {
		t.Errorf("uri = %q", p.URI)
	}
	if len(p.Diagnostics) != 1 || p.Diagnostics[0].Severity != lsp.SeverityError {
		t.Fatalf("diagnostics = %+v", p.Diagnostics)
	}

	// Cache keys are workspace-relative.
	if _, ok := s.lang.Cache().Entry("page.rhy"); !ok {
		t.Errorf("paths = %v", s.lang.Cache().Paths())
	}

	s.notify("textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": s.uri("page.rhy"), "version": 2},
		"contentChanges": []map[string]any{{"text": "@if(user)\n@endif\n"}},
	})
	msg := s.read()
	var changed publishDiagnosticsParams
	if err := json.Unmarshal(msg.Params, &changed); err != nil {
		t.Fatal(err)
	}
	if len(changed.Diagnostics) != 0 {
		t.Errorf("diagnostics after fix = %+v", changed.Diagnostics)
	}
}

func TestNonTemplateDocumentIgnored(t *testing.T) {
	s := startSession(t)
	s.initialize(true)
	uri := s.uri("notes.md")
	text := "@component(\"ghost\")\n@if(x)"

	s.notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{"uri": uri, "languageId": "markdown", "version": 1, "text": "# notes\n"},
	})
	s.notify("textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": uri, "version": 2},
		"contentChanges": []map[string]any{{"text": text}},
	})
	s.notify("textDocument/didSave", map[string]any{
		"textDocument": map[string]any{"uri": uri},
		"text":         text,
	})

	// Messages are handled in order, so nothing was published if the next
	// message is the reply.
	resp := s.request("textDocument/hover", map[string]any{
		"textDocument": map[string]any{"uri": s.uri("card.rhy")},
		"position":     map[string]any{"line": 0, "character": 1},
	})
	if resp.Method != "" || resp.ID == nil {
		t.Fatalf("expected hover reply, got %+v", resp)
	}

	if _, ok := s.lang.Cache().Entry("notes.md"); ok {
		t.Error("notes.md was cached")
	}
	components, _ := s.lang.Cache().Aggregates()
	for _, c := range components {
		if c == "ghost" {
			t.Errorf("components = %v", components)
		}
	}
}

func TestClosedDocumentStopsSyncing(t *testing.T) {
	s := startSession(t)
	s.initialize(true)
	s.open("page.rhy", "@if(a)\n@endif\n")

	s.notify("textDocument/didClose", map[string]any{
		"textDocument": map[string]any{"uri": s.uri("page.rhy")},
	})
	s.notify("textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": s.uri("page.rhy"), "version": 2},
		"contentChanges": []map[string]any{{"text": "@if(a)\n"}},
	})
	resp := s.request("shutdown", nil)
	if resp.Method != "" {
		t.Fatalf("expected shutdown reply, got %+v", resp)
	}
	entry, ok := s.lang.Cache().Entry("page.rhy")
	if !ok || entry.Content != "@if(a)\n@endif\n" {
		t.Errorf("entry = %+v, %v", entry, ok)
	}
}

func TestUTF16ClientColumns(t *testing.T) {
	s := startSession(t)
	res := s.initializeWith(true, []string{"utf-16"})
	if res.Capabilities.PositionEncoding != "" {
		t.Errorf("position encoding = %q", res.Capabilities.PositionEncoding)
	}

	// The emoji is two UTF-16 units and one rune.
	p := s.open("page.rhy", "\U0001F600 @section('main')\n")
	if len(p.Diagnostics) != 1 || p.Diagnostics[0].Range.Start.Character != 3 {
		t.Fatalf("diagnostics = %+v", p.Diagnostics)
	}

	resp := s.request("textDocument/hover", map[string]any{
		"textDocument": map[string]any{"uri": s.uri("page.rhy")},
		"position":     map[string]any{"line": 0, "character": 4},
	})
	var h hover
	if err := json.Unmarshal(resp.Result, &h); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.Contents.Value, "@section") {
		t.Errorf("hover = %+v", h)
	}
	if h.Range == nil || h.Range.Start.Character != 3 {
		t.Errorf("range = %+v", h.Range)
	}
}

func TestCompletionSnippetSupport(t *testing.T) {
	tests := []struct {
		name       string
		snippets   bool
		wantFormat int
	}{
		{"snippets", true, formatSnippet},
		{"plain text", false, formatPlainText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startSession(t)
			s.initialize(tt.snippets)
			s.open("page.rhy", "@i")

			resp := s.request("textDocument/completion", map[string]any{
				"textDocument": map[string]any{"uri": s.uri("page.rhy")},
				"position":     map[string]any{"line": 0, "character": 2},
			})
			if resp.Error != nil {
				t.Fatalf("completion error: %v", resp.Error)
			}
			var items []completionItem
			if err := json.Unmarshal(resp.Result, &items); err != nil {
				t.Fatal(err)
			}
			var ifItem *completionItem
			for i := range items {
				if items[i].Label == "@if" {
					ifItem = &items[i]
				}
			}
			if ifItem == nil {
				t.Fatalf("no @if among %d items", len(items))
			}
			if ifItem.InsertTextFormat != tt.wantFormat {
				t.Errorf("format = %d, want %d", ifItem.InsertTextFormat, tt.wantFormat)
			}
			if !tt.snippets && strings.Contains(ifItem.InsertText, "$") {
				t.Errorf("placeholders left in %q", ifItem.InsertText)
			}
		})
	}
}

func TestHoverRequest(t *testing.T) {
	s := startSession(t)
	s.initialize(true)
	s.open("page.rhy", "@section('main')\n@endsection\n")

	resp := s.request("textDocument/hover", map[string]any{
		"textDocument": map[string]any{"uri": s.uri("page.rhy")},
		"position":     map[string]any{"line": 0, "character": 3},
	})
	var h hover
	if err := json.Unmarshal(resp.Result, &h); err != nil {
		t.Fatal(err)
	}
	if h.Contents.Kind != "markdown" || !strings.Contains(h.Contents.Value, "@section") {
		t.Errorf("hover = %+v", h)
	}
	if h.Range == nil || h.Range.Start.Character != 0 {
		t.Errorf("range = %+v", h.Range)
	}

	resp = s.request("textDocument/hover", map[string]any{
		"textDocument": map[string]any{"uri": s.uri("page.rhy")},
		"position":     map[string]any{"line": 5, "character": 0},
	})
	if string(resp.Result) != "null" {
		t.Errorf("hover past end = %s, want null", resp.Result)
	}
}

func TestUnknownMethodAndBadParams(t *testing.T) {
	s := startSession(t)
	s.initialize(true)

	resp := s.request("textDocument/definition", map[string]any{})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Errorf("unknown method: %+v", resp.Error)
	}

	resp = s.request("textDocument/hover", "not an object")
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("bad params: %+v", resp.Error)
	}
}

func TestMalformedMessageKeepsServing(t *testing.T) {
	s := startSession(t)
	if _, err := io.WriteString(s.in, "Content-Length: 5\r\n\r\n{oops"); err != nil {
		t.Fatal(err)
	}
	msg := s.read()
	if msg.Error == nil || msg.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %+v", msg)
	}
	s.initialize(false)
}

func TestRequestsAfterShutdownRejected(t *testing.T) {
	s := startSession(t)
	s.initialize(true)
	s.request("shutdown", nil)

	resp := s.request("textDocument/hover", map[string]any{})
	if resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Errorf("after shutdown: %+v", resp.Error)
	}
}

func TestExitWithoutShutdown(t *testing.T) {
	s := startSession(t)
	s.notify("exit", nil)
	select {
	case err := <-s.done:
		if !errors.Is(err, ErrExitWithoutShutdown) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestPathFromURI(t *testing.T) {
	root := filepath.FromSlash("/work/site")
	s := &Server{opts: Options{Root: root}}

	tests := []struct {
		uri, want string
	}{
		{"file:///work/site/pages/home.rhy", "pages/home.rhy"},
		{"file:///elsewhere/x.rhy", filepath.FromSlash("/elsewhere/x.rhy")},
		{"untitled:Untitled-1", "untitled:Untitled-1"},
		{"file:///work/site/a%20b.rhy", "a b.rhy"},
	}
	for _, tt := range tests {
		if got := s.pathFromURI(tt.uri); got != tt.want {
			t.Errorf("pathFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
