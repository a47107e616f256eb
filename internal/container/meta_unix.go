//go:build unix

package container

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// StatEntry captures mode_bits/mtime_seconds precisely via unix.Stat,
// reaching for golang.org/x/sys rather than the coarser io/fs.FileInfo
// on platforms that support it.
func StatEntry(path string, fallback fs.FileInfo) (modeBits uint32, mtimeSeconds uint64) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return uint32(fallback.Mode().Perm()), uint64(fallback.ModTime().Unix())
	}
	return uint32(st.Mode), uint64(st.Mtim.Sec)
}

// RestoreMode applies mode_bits back to a freshly extracted file.
func RestoreMode(path string, modeBits uint32) error {
	return unix.Chmod(path, modeBits&0o7777)
}
