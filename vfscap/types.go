// Package vfscap defines the filesystem capability facade shared by the
// SMB, NFS, and Local backends, and the POSIX-ish Stat/Timespec value
// types the sync decision logic in rsyncworker compares.
package vfscap

import "os"

// Timespec is a POSIX timestamp with nanosecond resolution.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Seconds returns the whole-second component, preserving the original
// implementation's negative-seconds normalization: when Sec is negative
// and there is a nonzero nanosecond remainder, the remainder is read as
// counting *up* from the next second boundary rather than down from Sec,
// so the reported second is Sec+1. This only matters for timestamps
// before the Unix epoch, which this system never produces itself, but is
// kept because comparisons against NFS/SMB timestamps must match
// whatever the server reports bit for bit.
func (t Timespec) Seconds() int64 {
	if t.Sec < 0 && t.Nsec > 0 {
		return t.Sec + 1
	}
	return t.Sec
}

// MicrosModSec mirrors the original's parallel quirk in the microsecond
// remainder: it is computed against the same shifted second boundary as
// Seconds, not against Sec directly.
func (t Timespec) MicrosModSec() int64 {
	if t.Sec < 0 && t.Nsec > 0 {
		return (t.Nsec - 1000000000) / 1000
	}
	return t.Nsec / 1000
}

// Kind distinguishes the directory-entry types the sync decision logic
// branches on.
type Kind int

// Entry kinds.
const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindOther
)

// Stat carries the subset of POSIX metadata the sync decision logic
// compares between source and destination, matching spec.md §3's data
// model ({dev, ino, mode, nlink, uid, gid, rdev, size, blksize, blocks,
// atime, mtime, ctime}).
type Stat struct {
	Dev     int64
	Ino     uint64
	Mode    os.FileMode
	Nlink   uint64
	Uid     uint32
	Gid     uint32
	Rdev    int64
	Size    int64
	Blksize int64
	Blocks  int64
	Atime   Timespec
	Mtime   Timespec
	Ctime   Timespec
	Kind    Kind
	LinkTgt string // symlink target, populated only when Kind == KindSymlink
}

// Entry is one directory entry produced while walking a tree: a path
// relative to the sync root, plus the capability-level Stat needed to
// decide what, if anything, to do with it.
type Entry struct {
	RelPath string
	Stat    Stat
}
