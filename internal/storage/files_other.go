//go:build !linux

package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Files is a directory tree that names can never escape. Outside Linux there is no
// openat2, so containment comes from os.Root.
type Files struct {
	root string
	dir  *os.Root
}

func newFiles(root string) (*Files, error) {
	dir, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", root, err)
	}
	return &Files{root: root, dir: dir}, nil
}

func (f *Files) Close() error {
	return f.dir.Close()
}

func (f *Files) Open(name string) (File, error) {
	file, err := f.dir.Open(name)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *Files) Create(name string) (File, error) {
	file, err := f.dir.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *Files) MkdirAll(path string, perm fs.FileMode) error {
	return mkdirAll(f.dir.Mkdir, path, perm)
}

func (f *Files) Remove(name string) error {
	return f.dir.Remove(name)
}

func (f *Files) Sub(dir string) (Storage, error) {
	return newFiles(filepath.Join(f.root, dir))
}
