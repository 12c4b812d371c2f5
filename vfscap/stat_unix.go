//go:build linux || darwin

package vfscap

import (
	"io/fs"
	"os"
	"syscall"
)

func statFromFileInfo(path string, fi os.FileInfo) Stat {
	st := Stat{
		Mode: fi.Mode(),
		Size: fi.Size(),
		Kind: kindFromFileMode(fi.Mode()),
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Readlink(path); err == nil {
			st.LinkTgt = target
		}
	}
	sys, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return st
	}
	st.Dev = int64(sys.Dev)
	st.Ino = uint64(sys.Ino)
	st.Rdev = int64(sys.Rdev)
	st.Blksize = int64(sys.Blksize)
	st.Blocks = int64(sys.Blocks)
	st.Nlink = uint64(sys.Nlink)
	st.Uid = sys.Uid
	st.Gid = sys.Gid
	st.Atime = timespecFromSyscall(atim(sys))
	st.Mtime = timespecFromSyscall(mtim(sys))
	st.Ctime = timespecFromSyscall(ctim(sys))
	return st
}

func kindFromFileMode(mode fs.FileMode) Kind {
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

func timespecFromSyscall(sec, nsec int64) Timespec {
	return Timespec{Sec: sec, Nsec: nsec}
}
