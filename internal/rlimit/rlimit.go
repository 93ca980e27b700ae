// Package rlimit raises the open file limit so large batches are not capped
// by the default soft limit.
package rlimit
