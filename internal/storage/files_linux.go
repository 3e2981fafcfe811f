//go:build linux

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Files is a directory tree that names can never escape: every lookup is resolved
// with the directory as the filesystem root.
type Files struct {
	root string
	dfd  int
}

func newFiles(root string) (*Files, error) {
	dfd, err := unix.Open(root, unix.O_DIRECTORY|unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", root, err)
	}
	return &Files{
		root: root,
		dfd:  dfd,
	}, nil
}

func (f *Files) Close() error {
	return unix.Close(f.dfd)
}

func (f *Files) Open(name string) (File, error) {
	file, err := f.openFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *Files) Create(name string) (File, error) {
	file, err := f.openFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *Files) openParentOf(name string) (*os.File, error) {
	return f.openFile(filepath.Dir(name), unix.O_DIRECTORY|unix.O_PATH, 0)
}

func (f *Files) mkdir(name string, perm fs.FileMode) error {
	parent, err := f.openParentOf(name)
	if err != nil {
		return err
	}
	defer parent.Close()

	return unix.Mkdirat(int(parent.Fd()), filepath.Base(name), uint32(perm))
}

func (f *Files) MkdirAll(path string, perm fs.FileMode) error {
	return mkdirAll(f.mkdir, path, perm)
}

func (f *Files) openFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	// openat2 RESOLVE_IN_ROOT - so symlinks still work
	for {
		how := unix.OpenHow{
			Flags:   uint64(flag) | unix.O_CLOEXEC,
			Mode:    uint64(perm),
			Resolve: unix.RESOLVE_IN_ROOT,
		}
		fd, err := unix.Openat2(f.dfd, name, &how)
		if err != nil {
			// need to check for EINTR - Go issues 11180, 39237
			// also EAGAIN in case of unsafe race
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}

		return os.NewFile(uintptr(fd), name), nil
	}
}

func (f *Files) Remove(name string) error {
	// tricky: we have to open the *parent*, then unlinkat
	//
	// unlinkat has no RESOLVE_IN_ROOT, AT_EMPTY_PATH, or AT_SYMLINK_NOFOLLOW
	parent, err := f.openParentOf(name)
	if err != nil {
		return err
	}
	defer parent.Close()

	err = unix.Unlinkat(int(parent.Fd()), filepath.Base(name), 0)
	if err != nil {
		// try rmdir like Go
		return unix.Unlinkat(int(parent.Fd()), filepath.Base(name), unix.AT_REMOVEDIR)
	}
	return nil
}

func (f *Files) Sub(dir string) (Storage, error) {
	return newFiles(filepath.Join(f.root, dir))
}
