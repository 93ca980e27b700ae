// Package race settles an operation against its context deadline.
//
// Exactly one outcome is reported per call: either the operation's own result
// or the context error, whichever happens first. A value produced by the
// operation after the context has already won is handed to a release function
// so that sockets and other owned resources are not leaked.
package race
