package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// ResourceAggregates lists the component and block names known to the workspace.
const ResourceAggregates = "rhythm://aggregates"

type aggregates struct {
	Components []string `json:"components"`
	Blocks     []string `json:"blocks"`
}

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			ResourceAggregates,
			"Component and block names",
			mcplib.WithResourceDescription("Sorted component and block names declared across the cached templates"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAggregatesResource,
	)
}

func (s *Server) handleAggregatesResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	components, blocks := s.lang.Cache().Aggregates()
	if components == nil {
		components = []string{}
	}
	if blocks == nil {
		blocks = []string{}
	}
	data, err := json.Marshal(aggregates{Components: components, Blocks: blocks})
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
