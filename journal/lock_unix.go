//go:build unix

package journal

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockFile(f *os.File) (func() error, error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return nil, err
	}
	return func() error { return unix.Flock(fd, unix.LOCK_UN) }, nil
}
