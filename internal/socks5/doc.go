// Package socks5 provides the small SOCKS5 handshake layer used by tunnelcheck.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5 so
// that the negotiator can drive a client handshake over a connection it
// already owns, and so that test proxies can drive the matching server side.
//
// Client errors are typed: a non-success CONNECT reply is a *ReplyError
// carrying the RFC 1928 code, authentication refusals are ErrAuthFailed or
// ErrNoAcceptableMethods, and replies the library cannot parse wrap
// ErrMalformed.
package socks5
