//go:build unix

package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Raise lifts the soft RLIMIT_NOFILE to the hard limit and returns the new
// soft limit.
func Raise() (uint64, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, fmt.Errorf("getrlimit: %w", err)
	}
	if lim.Cur >= lim.Max {
		return uint64(lim.Cur), nil
	}

	want := lim
	want.Cur = lim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &want); err != nil {
		return uint64(lim.Cur), fmt.Errorf("setrlimit: %w", err)
	}
	return uint64(want.Cur), nil
}
