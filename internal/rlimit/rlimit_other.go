//go:build !unix

package rlimit

// Raise is a no-op where there is no RLIMIT_NOFILE.
func Raise() (uint64, error) {
	return 0, nil
}
