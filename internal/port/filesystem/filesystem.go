// Package filesystem defines the port for reading template sources.
package filesystem

import "context"

// NodeType distinguishes files from directories in a file tree.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// Node is one entry of the workspace file tree.
type Node struct {
	Type     NodeType `json:"type"`
	Path     string   `json:"path"`
	Children []Node   `json:"children,omitempty"`
}

// FileService is the port interface for template file access.
type FileService interface {
	// FileContent returns the current text of the file at path.
	FileContent(ctx context.Context, path string) (string, error)

	// FileTree returns the workspace tree rooted at the configured root.
	FileTree(ctx context.Context) ([]Node, error)
}

// Walk visits every node of the tree depth-first, directories before their children.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		if n.Type == NodeDirectory {
			Walk(n.Children, fn)
		}
	}
}
