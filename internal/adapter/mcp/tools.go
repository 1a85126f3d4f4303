package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/rhythm-ls/internal/domain"
	"github.com/Strob0t/rhythm-ls/internal/port/messagequeue"
)

// Tool names.
const (
	ToolCompletions = "rhythm_completions"
	ToolDiagnostics = "rhythm_diagnostics"
	ToolHover       = "rhythm_hover"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.completionsTool(),
		s.diagnosticsTool(),
		s.hoverTool(),
	)
}

func positionOptions() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Template path relative to the workspace root"),
		),
		mcplib.WithNumber("line",
			mcplib.Required(),
			mcplib.Description("0-based line"),
		),
		mcplib.WithNumber("character",
			mcplib.Required(),
			mcplib.Description("0-based character offset in code points"),
		),
	}
}

func (s *Server) completionsTool() mcpserver.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("List completion candidates (directives, components, blocks, variables) at a position in a Rhythm template"),
	}, positionOptions()...)
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool(ToolCompletions, opts...),
		Handler: s.handleCompletions,
	}
}

func (s *Server) diagnosticsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolDiagnostics,
		mcplib.WithDescription("Report compiler and structural diagnostics for a Rhythm template"),
		mcplib.WithString("path",
			mcplib.Required(),
			mcplib.Description("Template path relative to the workspace root"),
		),
		mcplib.WithString("content",
			mcplib.Description("Template text to check instead of the stored file; it is not cached"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleDiagnostics,
	}
}

func (s *Server) hoverTool() mcpserver.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("Describe the directive, component or variable at a position in a Rhythm template"),
	}, positionOptions()...)
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool(ToolHover, opts...),
		Handler: s.handleHover,
	}
}

func (s *Server) handleCompletions(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	path, line, character, errResult := positionArgs(req.GetArguments())
	if errResult != nil {
		return errResult, nil
	}
	return toolResultJSON(s.lang.GetCompletions(ctx, path, line, character))
}

func (s *Server) handleDiagnostics(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	args := req.GetArguments()
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcplib.NewToolResultError("path is required"), nil
	}
	var content *string
	if c, ok := args["content"].(string); ok {
		content = &c
	}
	return toolResultJSON(messagequeue.DiagnosticsPayload{
		Path:        path,
		Diagnostics: s.lang.GetDiagnostics(ctx, path, content),
	})
}

func (s *Server) handleHover(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	path, line, character, errResult := positionArgs(req.GetArguments())
	if errResult != nil {
		return errResult, nil
	}
	info := s.lang.GetHoverInfo(ctx, path, line, character)
	if info == nil {
		return mcplib.NewToolResultText("no hover information at this position"), nil
	}
	return toolResultJSON(info)
}

// positionArgs reads path/line/character. A non-nil result is the error to return to the caller.
func positionArgs(args map[string]any) (path string, line, character int, errResult *mcplib.CallToolResult) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", 0, 0, mcplib.NewToolResultError("path is required")
	}
	line, err := intArg(args, "line")
	if err != nil {
		return "", 0, 0, mcplib.NewToolResultError(err.Error())
	}
	character, err = intArg(args, "character")
	if err != nil {
		return "", 0, 0, mcplib.NewToolResultError(err.Error())
	}
	return path, line, character, nil
}

// intArg reads a non-negative integer argument. JSON numbers arrive as float64.
func intArg(args map[string]any, name string) (int, error) {
	var f float64
	switch v := args[name].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case nil:
		return 0, fmt.Errorf("%s is required", name)
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", name, domain.ErrInvalidPosition)
	}
	return int(f), nil
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
