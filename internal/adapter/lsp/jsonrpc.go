package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// maxContentLength bounds a single message body.
const maxContentLength = 32 << 20

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// JSONRPCMessage represents a JSON-RPC 2.0 message (request, response, or notification).
type JSONRPCMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`     // number or string; absent for notifications
	Method  string          `json:"method,omitempty"` // present for requests/notifications
	Params  json.RawMessage `json:"params,omitempty"` // request/notification params
	Result  json.RawMessage `json:"result,omitempty"` // response result
	Error   *JSONRPCError   `json:"error,omitempty"`  // response error
}

// IsRequest reports whether the message expects a response.
func (m *JSONRPCMessage) IsRequest() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// errMalformed marks a frame whose body is not valid JSON-RPC. The stream
// itself is still in sync, so the caller may keep reading.
var errMalformed = errors.New("malformed message")

// JSONRPCConn implements the JSON-RPC 2.0 over stdio transport with
// Content-Length header framing.
type JSONRPCConn struct {
	r      io.Reader
	w      io.Writer
	reader *bufio.Reader
	mu     sync.Mutex // protects writes
}

// NewJSONRPCConn creates a connection reading from r and writing to w.
func NewJSONRPCConn(r io.Reader, w io.Writer) *JSONRPCConn {
	return &JSONRPCConn{
		r:      r,
		w:      w,
		reader: bufio.NewReaderSize(r, 64*1024),
	}
}

// Reply sends a successful response for the request id.
func (c *JSONRPCConn) Reply(id json.RawMessage, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return c.send(JSONRPCMessage{JSONRPC: "2.0", ID: idOrNull(id), Result: raw})
}

// ReplyError sends an error response for the request id. A nil id is sent as null.
func (c *JSONRPCConn) ReplyError(id json.RawMessage, code int, message string) error {
	return c.send(JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      idOrNull(id),
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}

// Notify sends a JSON-RPC notification (no ID, no response expected).
func (c *JSONRPCConn) Notify(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	return c.send(JSONRPCMessage{JSONRPC: "2.0", Method: method, Params: raw})
}

// Send sends a request. It is only used by tests acting as the client.
func (c *JSONRPCConn) Send(id int, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	return c.send(JSONRPCMessage{JSONRPC: "2.0", ID: json.RawMessage(strconv.Itoa(id)), Method: method, Params: raw})
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func (c *JSONRPCConn) send(msg JSONRPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.writeMessage(data)
}

// ReadMessage reads one JSON-RPC message from the connection.
// Blocks until a full message is available or the connection is closed.
// A body that does not decode returns an error wrapping errMalformed.
func (c *JSONRPCConn) ReadMessage() (*JSONRPCMessage, error) {
	data, err := c.readMessage()
	if err != nil {
		return nil, err
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return &msg, nil
}

// writeMessage writes a JSON-RPC message with Content-Length header framing.
func (c *JSONRPCConn) writeMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(c.w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readMessage reads one Content-Length-framed message from the connection.
func (c *JSONRPCConn) readMessage() ([]byte, error) {
	// Read headers until empty line.
	contentLength := -1
	headers := 0
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if headers == 0 {
				continue // stray blank line between messages
			}
			break // End of headers
		}
		headers++
		name, val, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue // Ignore other headers (e.g. Content-Type).
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("parse Content-Length %q", val)
		}
		if n > maxContentLength {
			return nil, fmt.Errorf("content length %d exceeds %d", n, maxContentLength)
		}
		contentLength = n
	}

	if contentLength < 0 {
		return nil, errors.New("missing Content-Length header")
	}

	// Read exactly contentLength bytes.
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, fmt.Errorf("read body (%d bytes): %w", contentLength, err)
	}

	return body, nil
}
