//go:build !unix

package container

import (
	"io/fs"
	"os"
)

// StatEntry falls back to io/fs.FileInfo on platforms without unix.Stat.
func StatEntry(path string, fallback fs.FileInfo) (modeBits uint32, mtimeSeconds uint64) {
	return uint32(fallback.Mode().Perm()), uint64(fallback.ModTime().Unix())
}

// RestoreMode applies mode_bits back to a freshly extracted file.
func RestoreMode(path string, modeBits uint32) error {
	return os.Chmod(path, fs.FileMode(modeBits&0o7777))
}
