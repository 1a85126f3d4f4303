// Package mcp exposes the Rhythm language service to AI agents as a Model
// Context Protocol server.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/rhythm-ls/internal/service"
)

// ServerConfig holds the identity the server reports to clients.
type ServerConfig struct {
	Name    string
	Version string
}

// Server wraps an MCP server whose tools delegate to the language service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	lang      *service.LanguageService
}

// NewServer creates the server and registers its tools and resources.
func NewServer(cfg ServerConfig, lang *service.LanguageService) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
		lang: lang,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio speaks MCP over in/out until ctx ends or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))
	slog.InfoContext(ctx, "mcp: serving on stdio")
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler serves MCP over streamable HTTP, guarded by apiKey when set.
func (s *Server) HTTPHandler(apiKey string) http.Handler {
	return AuthMiddleware(apiKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}
