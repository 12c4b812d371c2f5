//go:build linux

package vfscap

import "syscall"

func atim(st *syscall.Stat_t) (int64, int64) { return int64(st.Atim.Sec), int64(st.Atim.Nsec) }
func mtim(st *syscall.Stat_t) (int64, int64) { return int64(st.Mtim.Sec), int64(st.Mtim.Nsec) }
func ctim(st *syscall.Stat_t) (int64, int64) { return int64(st.Ctim.Sec), int64(st.Ctim.Nsec) }
