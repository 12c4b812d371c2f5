package vfscap

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/willscott/go-nfs-client/nfs"
	"github.com/willscott/go-nfs-client/nfs/rpc"

	ferr "github.com/0X1A/File-Forklift/ferrors"
)

// NFSOptions configures the NFS FileSystem variant.
type NFSOptions struct {
	Host     string
	Export   string
	UID, GID uint32
	Hostname string // reported to the server's rpc auth, defaults to os.Hostname()
}

// NFS implements FileSystem over a single mounted NFSv3 export. Unlike
// the SMB variant it holds one long-lived mount rather than a pool,
// since the underlying client already multiplexes RPC calls over one
// connection the way the original's libnfs binding did.
type NFS struct {
	opt    NFSOptions
	mu     sync.Mutex
	mount  *nfs.Mount
	target *nfs.Target
}

// NewNFS dials the mount protocol and mounts opt.Export.
func NewNFS(opt NFSOptions) (*NFS, error) {
	if opt.Hostname == "" {
		opt.Hostname, _ = os.Hostname()
	}
	mount, err := nfs.DialMount(opt.Host)
	if err != nil {
		return nil, ferr.New(ferr.KindIO, "dial nfs mount", err)
	}
	auth := rpc.NewAuthUnix(opt.Hostname, opt.UID, opt.GID)
	target, err := mount.Mount(opt.Export, auth.Auth())
	if err != nil {
		mount.Close()
		return nil, ferr.New(ferr.KindIO, "mount "+opt.Export, err)
	}
	return &NFS{opt: opt, mount: mount, target: target}, nil
}

func (n *NFS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = n.target.Close()
	return n.mount.Close()
}

func (n *NFS) Create(_ context.Context, path string, mode os.FileMode) (File, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	f, err := n.target.OpenFile(path, mode)
	if err != nil {
		return nil, ferr.IO("create", path, err)
	}
	return &nfsFile{f: f}, nil
}

func (n *NFS) Open(_ context.Context, path string) (File, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	f, err := n.target.OpenFile(path, 0)
	if err != nil {
		return nil, ferr.IO("open", path, err)
	}
	return &nfsFile{f: f}, nil
}

func (n *NFS) OpenDir(_ context.Context, path string) (Dir, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entries, err := n.target.ReadDirPlus(path)
	if err != nil {
		return nil, ferr.IO("opendir", path, err)
	}
	return &nfsDir{entries: entries}, nil
}

func (n *NFS) Stat(_ context.Context, path string) (Stat, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, fattr, err := n.target.Lookup(path)
	if err != nil {
		return Stat{}, ferr.IO("stat", path, err)
	}
	return statFromNFSFattr(fattr), nil
}

func (n *NFS) Mkdir(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := n.target.Mkdir(path, 0o755)
	if err != nil {
		return ferr.IO("mkdir", path, err)
	}
	return nil
}

func (n *NFS) Rmdir(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.target.RmDir(path); err != nil {
		return ferr.IO("rmdir", path, err)
	}
	return nil
}

func (n *NFS) Rename(_ context.Context, oldpath, newpath string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.target.Rename(oldpath, newpath); err != nil {
		return ferr.IO("rename", oldpath, err)
	}
	return nil
}

func (n *NFS) Unlink(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.target.Remove(path); err != nil {
		return ferr.IO("unlink", path, err)
	}
	return nil
}

func (n *NFS) Readlink(_ context.Context, path string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target, err := n.target.Readlink(path)
	if err != nil {
		return "", ferr.IO("readlink", path, err)
	}
	return target, nil
}

func (n *NFS) Symlink(_ context.Context, oldname, newname string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.target.Symlink(oldname, newname); err != nil {
		return ferr.IO("symlink", newname, err)
	}
	return nil
}

// Chmod sets the POSIX mode bits directly: NFSv3's SETATTR carries a
// real mode field, unlike SMB's DOS-attribute approximation.
func (n *NFS) Chmod(_ context.Context, path string, mode os.FileMode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.target.Chmod(path, mode); err != nil {
		return ferr.IO("chmod", path, err)
	}
	return nil
}

type nfsFile struct {
	mu sync.Mutex
	f  io.ReadWriteCloser
}

func (nf *nfsFile) Read(_ context.Context, p []byte, offset int64) (int, error) {
	nf.mu.Lock()
	defer nf.mu.Unlock()
	n, err := nf.f.Read(p)
	if err != nil && err != io.EOF {
		return n, ferr.IO("read", "", err)
	}
	return n, err
}

func (nf *nfsFile) Write(_ context.Context, p []byte, offset int64) (int, error) {
	nf.mu.Lock()
	defer nf.mu.Unlock()
	n, err := nf.f.Write(p)
	if err != nil {
		return n, ferr.IO("write", "", err)
	}
	return n, nil
}

func (nf *nfsFile) Fstat(_ context.Context) (Stat, error) {
	return Stat{}, ferr.New(ferr.KindIO, "nfs fstat not supported on open handle, use FileSystem.Stat", nil)
}

func (nf *nfsFile) Truncate(_ context.Context, size int64) error {
	return ferr.New(ferr.KindIO, "nfs truncate unsupported", nil)
}

func (nf *nfsFile) Close() error { return nf.f.Close() }

type nfsDir struct {
	entries []*nfs.EntryPlus
	i       int
}

func (nd *nfsDir) Next(_ context.Context) (string, bool, error) {
	if nd.i >= len(nd.entries) {
		return "", false, nil
	}
	name := nd.entries[nd.i].FileName
	nd.i++
	if name == "." || name == ".." {
		return nd.Next(context.Background())
	}
	return name, true, nil
}

func (nd *nfsDir) Close() error { return nil }

func statFromNFSFattr(attr *nfs.Fattr) Stat {
	st := Stat{
		Mode:  os.FileMode(attr.Mode),
		Size:  int64(attr.Size),
		Nlink: uint64(attr.Nlink),
		Uid:   attr.UID,
		Gid:   attr.GID,
		Kind:  kindFromFileMode(os.FileMode(attr.Mode)),
	}
	st.Mtime = Timespec{Sec: int64(attr.Mtime.Seconds), Nsec: int64(attr.Mtime.Nseconds)}
	st.Atime = Timespec{Sec: int64(attr.Atime.Seconds), Nsec: int64(attr.Atime.Nseconds)}
	st.Ctime = Timespec{Sec: int64(attr.Ctime.Seconds), Nsec: int64(attr.Ctime.Nseconds)}
	return st
}
