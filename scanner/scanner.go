// Package scanner looks for the directories of a tree whose name contains a marker (e.g. R10 for the 10m bands).
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/aoifetch/service"
)

const DefaultMarker = "R10"

// Scan walks the tree top-down, in lexical order, and returns the directories (root excluded)
// whose base name contains the marker
func Scan(root, marker string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, service.Wrap(service.ErrFileNotFound, fmt.Errorf("Scan: %w", err))
		}
		return nil, service.Wrap(service.ErrStorage, fmt.Errorf("Scan: %w", err))
	}
	if !info.IsDir() {
		return nil, service.Wrapf(service.ErrFileNotFound, "Scan: %s is not a directory", root)
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root && strings.Contains(d.Name(), marker) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, service.Wrap(service.ErrStorage, fmt.Errorf("Scan.WalkDir: %w", err))
	}
	return dirs, nil
}

// WriteList writes the directories, one per line
func WriteList(path string, dirs []string) error {
	f, err := os.Create(path)
	if err != nil {
		return service.Wrap(service.ErrStorage, fmt.Errorf("WriteList: %w", err))
	}
	w := bufio.NewWriter(f)
	for _, d := range dirs {
		fmt.Fprintln(w, d)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return service.Wrap(service.ErrStorage, fmt.Errorf("WriteList.Flush: %w", err))
	}
	if err := f.Close(); err != nil {
		return service.Wrap(service.ErrStorage, fmt.Errorf("WriteList.Close: %w", err))
	}
	return nil
}
