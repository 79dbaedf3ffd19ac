//go:build unix

package ids

import (
	"os"
	"syscall"
)

// platformFileID extracts the inode from a POSIX Stat_t, giving one file
// the same id across its hardlinks/renames within a single analysis run.
func platformFileID(info os.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Ino), true
}
