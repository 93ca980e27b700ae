//go:build unix

package rlimit

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestRaise(t *testing.T) {
	got, err := Raise()
	if err != nil {
		// Some kernels refuse an unlimited hard limit as a soft limit.
		t.Skipf("Raise: %v", err)
	}

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		t.Fatal(err)
	}
	if uint64(lim.Cur) != got {
		t.Fatalf("Raise returned %d, soft limit is %d", got, lim.Cur)
	}
}
