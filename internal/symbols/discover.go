package symbols

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Artifact is a debug-symbol or dynamic library file found in a build tree.
type Artifact struct {
	Path      string
	Extension string
	Size      int64
}

func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Discover walks root and returns every regular file whose extension exactly matches
// one of extensions, sorted by path. A missing root yields no artifacts and no error.
func Discover(root string, extensions []string) ([]Artifact, error) {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[ext] = struct{}{}
	}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []Artifact{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []Artifact{}, nil
	}

	artifacts := []Artifact{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		ext := filepath.Ext(path)
		if _, ok := allowed[ext]; !ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		artifacts = append(artifacts, Artifact{
			Path:      path,
			Extension: ext,
			Size:      fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})
	return artifacts, nil
}
