// Package workspace resolves the relative paths of the workflow against an explicit base directory.
// It never changes the working directory of the process.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/aoifetch/service"
)

// Workspace is a base directory
type Workspace struct {
	root string
}

// Open checks that root is an absolute path to an existing directory and returns the workspace
func Open(root string) (Workspace, error) {
	if !filepath.IsAbs(root) {
		return Workspace{}, service.Wrapf(service.ErrConfig, "workspace.Open: %s is not an absolute path", root)
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return Workspace{}, service.Wrap(service.ErrFileNotFound, fmt.Errorf("workspace.Open: %w", err))
		}
		return Workspace{}, service.Wrap(service.ErrStorage, fmt.Errorf("workspace.Open: %w", err))
	}
	if !info.IsDir() {
		return Workspace{}, service.Wrapf(service.ErrConfig, "workspace.Open: %s is not a directory", root)
	}
	// Check access rights
	f, err := os.Open(root)
	if err != nil {
		return Workspace{}, service.Wrap(service.ErrStorage, fmt.Errorf("workspace.Open: %w", err))
	}
	f.Close()
	return Workspace{root: root}, nil
}

// Root returns the base directory
func (w Workspace) Root() string {
	return w.root
}

// Path resolves a path against the root of the workspace. Absolute paths are returned unchanged.
func (w Workspace) Path(elem ...string) string {
	p := filepath.Join(elem...)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.root, p)
}

// Sub opens a workspace rooted at the given path (resolved against w)
func (w Workspace) Sub(rel string) (Workspace, error) {
	return Open(w.Path(rel))
}

// MkdirAll creates the directory (resolved against w) and returns its path
func (w Workspace) MkdirAll(rel string) (string, error) {
	p := w.Path(rel)
	if err := os.MkdirAll(p, 0755); err != nil {
		return "", service.Wrap(service.ErrStorage, fmt.Errorf("workspace.MkdirAll: %w", err))
	}
	return p, nil
}
