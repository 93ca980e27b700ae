package dialer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/die-net/tunnelcheck/internal/socks4"
	"github.com/die-net/tunnelcheck/internal/socks5"
	"github.com/die-net/tunnelcheck/internal/ssh"
)

// ErrorKind classifies why a tunnel could not be established.
type ErrorKind string

const (
	// Timeout means no outcome arrived within the allotted time.
	Timeout ErrorKind = "timeout"
	// ConnectRefused means the TCP connect was actively refused.
	ConnectRefused ErrorKind = "connect-refused"
	// Transport covers other connection-level failures.
	Transport ErrorKind = "transport"
	// ProxyRejected means the proxy answered but declined the tunnel.
	ProxyRejected ErrorKind = "proxy-rejected"
	// ProtocolError means the proxy's answer could not be understood.
	ProtocolError ErrorKind = "protocol-error"
	// BadRequest is a caller mistake: unusable descriptor or destination.
	BadRequest ErrorKind = "bad-request"
	// Canceled means the caller gave up before an outcome arrived.
	Canceled ErrorKind = "canceled"
	// ProbeFailed means the tunnel came up but the liveness probe failed.
	ProbeFailed ErrorKind = "probe-failed"
)

// Failure is the error type for every unsuccessful negotiation.
type Failure struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Detail
}

func (f *Failure) Unwrap() error { return f.Err }

func badRequest(format string, args ...any) *Failure {
	return &Failure{Kind: BadRequest, Detail: fmt.Sprintf(format, args...)}
}

// IsBadRequest reports whether err is a BadRequest failure.
func IsBadRequest(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == BadRequest
}

// errMalformed marks an HTTP CONNECT response that is not HTTP.
var errMalformed = errors.New("http: malformed CONNECT response")

// StatusError is a CONNECT response outside 2xx.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "http: proxy responded " + e.Status
}

// Classify turns any error from a negotiation or probe into a Failure. A
// *Failure is returned as is.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: kindOf(err), Detail: err.Error(), Err: err}
}

func kindOf(err error) ErrorKind {
	var (
		ne   net.Error
		s5   *socks5.ReplyError
		s4   *socks4.ReplyError
		se   *StatusError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return Timeout
	case errors.As(err, &ne) && ne.Timeout():
		return Timeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectRefused

	case errors.As(err, &s5), errors.As(err, &s4), errors.As(err, &se),
		errors.Is(err, socks5.ErrNoAcceptableMethods),
		errors.Is(err, socks5.ErrAuthRequired),
		errors.Is(err, socks5.ErrAuthFailed),
		errors.Is(err, ssh.ErrAuthFailed),
		errors.Is(err, ssh.ErrHostKeyMismatch),
		errors.Is(err, ssh.ErrChannelRejected):
		return ProxyRejected

	case errors.Is(err, socks5.ErrMalformed),
		errors.Is(err, socks4.ErrMalformed),
		errors.Is(err, errMalformed),
		errors.Is(err, ssh.ErrHandshake),
		// The proxy accepted TCP and hung up mid-handshake.
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ProtocolError
	}
	return Transport
}
