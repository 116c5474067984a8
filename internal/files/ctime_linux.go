//go:build linux

package files

import (
	"io/fs"
	"syscall"
	"time"
)

// createdTime reports the inode change time, the closest Linux has to a creation time.
func createdTime(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	}
	return info.ModTime()
}
