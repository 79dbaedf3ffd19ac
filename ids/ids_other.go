//go:build !unix

package ids

import "os"

// platformFileID has no inode concept outside POSIX; FileID then falls
// back to a path hash and FileIDForPath to 0.
func platformFileID(info os.FileInfo) (uint64, bool) {
	return 0, false
}
