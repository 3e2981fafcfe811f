package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// mkdirAll creates path and any missing parents with mkdir, which only ever creates
// a single directory.
func mkdirAll(mkdir func(string, fs.FileMode) error, path string, perm fs.FileMode) error {
	// end of recursion
	if path == "" || path == "." || path == "/" {
		return nil
	}

	// try first
	err := mkdir(path, perm)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}

	// if it failed, try w/ parent
	err = mkdirAll(mkdir, filepath.Dir(path), perm)
	if err != nil {
		return err
	}

	// try again
	err = mkdir(path, perm)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}
