//go:build darwin

package vfscap

import "syscall"

func atim(st *syscall.Stat_t) (int64, int64) { return int64(st.Atimespec.Sec), int64(st.Atimespec.Nsec) }
func mtim(st *syscall.Stat_t) (int64, int64) { return int64(st.Mtimespec.Sec), int64(st.Mtimespec.Nsec) }
func ctim(st *syscall.Stat_t) (int64, int64) { return int64(st.Ctimespec.Sec), int64(st.Ctimespec.Nsec) }
