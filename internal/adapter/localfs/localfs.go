// Package localfs serves template sources from a directory on local disk.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Strob0t/rhythm-ls/internal/domain"
	"github.com/Strob0t/rhythm-ls/internal/port/filesystem"
)

var _ filesystem.FileService = (*FileService)(nil)

// FileService reads files below a workspace root. Paths it hands out and
// accepts are relative to the root and use forward slashes.
type FileService struct {
	root string
}

// New returns a FileService rooted at root.
func New(root string) (*FileService, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}
	return &FileService{root: abs}, nil
}

// Root returns the absolute workspace root.
func (s *FileService) Root() string { return s.root }

// resolve maps a workspace path to a file on disk, refusing paths that leave the root.
func (s *FileService) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path: %w", domain.ErrNotFound)
	}
	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s outside workspace: %w", path, domain.ErrNotFound)
	}
	return p, nil
}

// FileContent returns the text of the file at path.
func (s *FileService) FileContent(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// FileTree lists the workspace. Hidden entries (leading dot) are skipped.
func (s *FileService) FileTree(ctx context.Context) ([]filesystem.Node, error) {
	dirs := map[string]*filesystem.Node{".": {Type: filesystem.NodeDirectory}}

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == s.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		node := filesystem.Node{Type: filesystem.NodeFile, Path: filepath.ToSlash(rel)}
		if d.IsDir() {
			node.Type = filesystem.NodeDirectory
			dirs[rel] = &node
		}
		parent := dirs[filepath.Dir(rel)]
		parent.Children = append(parent.Children, node)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return assemble(dirs, "."), nil
}

// assemble rebuilds the children of dir from the collected directory nodes.
// WalkDir appends a directory to its parent before visiting it, so the
// parent's copy has to be refreshed from the map.
func assemble(dirs map[string]*filesystem.Node, dir string) []filesystem.Node {
	children := dirs[dir].Children
	out := make([]filesystem.Node, 0, len(children))
	for _, c := range children {
		if c.Type == filesystem.NodeDirectory {
			c.Children = assemble(dirs, filepath.FromSlash(c.Path))
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
