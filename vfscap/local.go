package vfscap

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	ferr "github.com/0X1A/File-Forklift/ferrors"
)

// Local is the Local FileSystem variant: a plain directory tree on the
// machine running the worker process. It backs same-host development
// and CI runs, and stands in for the teacher's own local backend (which
// this package adapts rather than the SMB/NFS network stacks, since a
// sync participant never needs credentials or mounts to talk to itself).
type Local struct {
	root string
}

// NewLocal returns a Local backend rooted at root (an absolute directory
// path that must already exist).
func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) abs(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *Local) Create(_ context.Context, path string, mode os.FileMode) (File, error) {
	f, err := os.OpenFile(l.abs(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return nil, ferr.IO("create", path, err)
	}
	return &localFile{f: f}, nil
}

func (l *Local) Open(_ context.Context, path string) (File, error) {
	f, err := os.OpenFile(l.abs(path), os.O_RDWR, 0)
	if err != nil {
		return nil, ferr.IO("open", path, err)
	}
	return &localFile{f: f}, nil
}

func (l *Local) OpenDir(_ context.Context, path string) (Dir, error) {
	entries, err := os.ReadDir(l.abs(path))
	if err != nil {
		return nil, ferr.IO("opendir", path, err)
	}
	return &localDir{entries: entries}, nil
}

func (l *Local) Stat(_ context.Context, path string) (Stat, error) {
	fi, err := os.Lstat(l.abs(path))
	if err != nil {
		return Stat{}, ferr.IO("stat", path, err)
	}
	return statFromFileInfo(l.abs(path), fi), nil
}

func (l *Local) Mkdir(_ context.Context, path string) error {
	if err := os.Mkdir(l.abs(path), 0o755); err != nil {
		return ferr.IO("mkdir", path, err)
	}
	return nil
}

func (l *Local) Rmdir(_ context.Context, path string) error {
	if err := os.Remove(l.abs(path)); err != nil {
		return ferr.IO("rmdir", path, err)
	}
	return nil
}

func (l *Local) Rename(_ context.Context, oldpath, newpath string) error {
	if err := os.Rename(l.abs(oldpath), l.abs(newpath)); err != nil {
		return ferr.IO("rename", oldpath, err)
	}
	return nil
}

func (l *Local) Unlink(_ context.Context, path string) error {
	if err := os.Remove(l.abs(path)); err != nil {
		return ferr.IO("unlink", path, err)
	}
	return nil
}

func (l *Local) Readlink(_ context.Context, path string) (string, error) {
	target, err := os.Readlink(l.abs(path))
	if err != nil {
		return "", ferr.IO("readlink", path, err)
	}
	return target, nil
}

func (l *Local) Symlink(_ context.Context, oldname, newname string) error {
	if err := os.Symlink(oldname, l.abs(newname)); err != nil {
		return ferr.IO("symlink", newname, err)
	}
	return nil
}

func (l *Local) Chmod(_ context.Context, path string, mode os.FileMode) error {
	if err := os.Chmod(l.abs(path), mode); err != nil {
		return ferr.IO("chmod", path, err)
	}
	return nil
}

func (l *Local) Close() error { return nil }

type localFile struct {
	mu sync.Mutex
	f  *os.File
}

func (lf *localFile) Read(_ context.Context, p []byte, offset int64) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	n, err := lf.f.ReadAt(p, offset)
	if err != nil && err != io.EOF {
		return n, ferr.IO("read", lf.f.Name(), err)
	}
	return n, err
}

func (lf *localFile) Write(_ context.Context, p []byte, offset int64) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	n, err := lf.f.WriteAt(p, offset)
	if err != nil {
		return n, ferr.IO("write", lf.f.Name(), err)
	}
	return n, nil
}

func (lf *localFile) Fstat(_ context.Context) (Stat, error) {
	fi, err := lf.f.Stat()
	if err != nil {
		return Stat{}, ferr.IO("fstat", lf.f.Name(), err)
	}
	return statFromFileInfo(lf.f.Name(), fi), nil
}

func (lf *localFile) Truncate(_ context.Context, size int64) error {
	if err := lf.f.Truncate(size); err != nil {
		return ferr.IO("truncate", lf.f.Name(), err)
	}
	return nil
}

func (lf *localFile) Close() error { return lf.f.Close() }

type localDir struct {
	entries []fs.DirEntry
	i       int
}

func (ld *localDir) Next(_ context.Context) (string, bool, error) {
	if ld.i >= len(ld.entries) {
		return "", false, nil
	}
	name := ld.entries[ld.i].Name()
	ld.i++
	return name, true, nil
}

func (ld *localDir) Close() error { return nil }
