// Package prompt resolves logical template names to concrete template text
// through a three-tier regulation/schedule fallback chain.
package prompt

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Store returns raw template text for a resolved path, or ErrNotFound.
type Store interface {
	Read(path string) (string, error)
}

// ErrNotFound is returned by a Store when a path does not resolve.
var ErrNotFound = eris.New("template not found")

// DirStore reads templates from a directory tree on disk.
type DirStore struct {
	fsys fs.FS
}

// NewDirStore creates a Store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{fsys: os.DirFS(dir)}
}

// NewFSStore creates a Store over an arbitrary fs.FS, for tests and embedding.
func NewFSStore(fsys fs.FS) *DirStore {
	return &DirStore{fsys: fsys}
}

// Read returns the template text at path, or ErrNotFound.
func (s *DirStore) Read(path string) (string, error) {
	data, err := fs.ReadFile(s.fsys, filepath.ToSlash(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", eris.Wrapf(err, "prompt: read %s", path)
	}
	return string(data), nil
}
