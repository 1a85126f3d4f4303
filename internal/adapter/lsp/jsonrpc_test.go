package lsp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONRPCConn(strings.NewReader(""), &buf)

	if err := w.Send(7, "textDocument/hover", map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if err := w.Notify("initialized", struct{}{}); err != nil {
		t.Fatal(err)
	}
	if err := w.Reply(json.RawMessage(`"abc"`), []int{1, 2}); err != nil {
		t.Fatal(err)
	}

	r := NewJSONRPCConn(&buf, io.Discard)

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Method != "textDocument/hover" || string(msg.ID) != "7" || !msg.IsRequest() {
		t.Errorf("request = %+v", msg)
	}

	msg, err = r.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Method != "initialized" || msg.IsRequest() {
		t.Errorf("notification = %+v", msg)
	}

	msg, err = r.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.ID) != `"abc"` || string(msg.Result) != "[1,2]" {
		t.Errorf("response = %+v", msg)
	}

	if _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
}

func TestReadMessageHeaders(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"exit"}`
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"standard", "Content-Length: 33\r\n\r\n" + body, true},
		{"lower case, extra header", "content-type: application/vscode-jsonrpc\r\ncontent-length:33\r\n\r\n" + body, true},
		{"leading blank line", "\r\nContent-Length: 33\r\n\r\n" + body, true},
		{"missing length", "Content-Type: x\r\n\r\n" + body, false},
		{"bad length", "Content-Length: abc\r\n\r\n" + body, false},
		{"too large", "Content-Length: 999999999\r\n\r\n", false},
		{"short body", "Content-Length: 99\r\n\r\n" + body, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewJSONRPCConn(strings.NewReader(tt.input), io.Discard)
			msg, err := c.ReadMessage()
			if tt.ok {
				if err != nil {
					t.Fatalf("ReadMessage: %v", err)
				}
				if msg.Method != "exit" {
					t.Errorf("method = %q", msg.Method)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadMessageMalformedBody(t *testing.T) {
	c := NewJSONRPCConn(strings.NewReader("Content-Length: 5\r\n\r\n{oops"), io.Discard)
	_, err := c.ReadMessage()
	if !errors.Is(err, errMalformed) {
		t.Errorf("err = %v, want errMalformed", err)
	}
}

func TestReplyErrorNullID(t *testing.T) {
	var buf bytes.Buffer
	c := NewJSONRPCConn(strings.NewReader(""), &buf)
	if err := c.ReplyError(nil, CodeParseError, "parse error"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"id":null`) {
		t.Errorf("expected null id, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"code":-32700`) {
		t.Errorf("expected parse error code, got %s", buf.String())
	}
}

func TestJSONRPCErrorString(t *testing.T) {
	e := &JSONRPCError{Code: CodeMethodNotFound, Message: "nope"}
	if e.Error() != "jsonrpc error -32601: nope" {
		t.Errorf("Error() = %q", e.Error())
	}
}
