package fsbackup

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"
)

// EnsureDirectoryExist creates dirPath (and parents) if missing.
func EnsureDirectoryExist(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory %q: %w", dirPath, err)
	}
	return nil
}

// owner extracts uid/gid from a stat result. Returns zeros when the
// platform stat type is unavailable.
func owner(info fs.FileInfo) (uid, gid int) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return int(st.Uid), int(st.Gid)
	}
	return 0, 0
}

// accessTime returns the file's atime, falling back to mtime.
func accessTime(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return info.ModTime()
}
