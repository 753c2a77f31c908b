//go:build windows

package journal

import (
	"os"

	"golang.org/x/sys/windows"
)

// The locked range sits far beyond EOF so the host can still read the
// file while we hold it.
const (
	lockOffsetHigh = 0x7fffffff
	lockLen        = 1
)

func lockFile(f *os.File) (func() error, error) {
	h := windows.Handle(f.Fd())
	ol := &windows.Overlapped{OffsetHigh: lockOffsetHigh}
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(h, flags, 0, lockLen, 0, ol); err != nil {
		return nil, err
	}
	return func() error {
		return windows.UnlockFileEx(h, 0, lockLen, 0, &windows.Overlapped{OffsetHigh: lockOffsetHigh})
	}, nil
}
