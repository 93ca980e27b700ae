package socks5

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

var (
	// ErrMalformed marks a reply that does not follow the protocol.
	ErrMalformed = errors.New("socks5: malformed reply")

	// ErrNoAcceptableMethods is returned when the server selects method 0xFF.
	ErrNoAcceptableMethods = errors.New("socks5: no acceptable authentication methods")

	// ErrAuthRequired is returned when the server demands username/password
	// but no credentials were configured.
	ErrAuthRequired = errors.New("socks5: server requires username/password")

	// ErrAuthFailed is returned when username/password authentication is refused.
	ErrAuthFailed = errors.New("socks5: authentication failed")
)

// ReplyError is a CONNECT reply with a non-success REP field.
type ReplyError struct {
	Rep byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5: connect failed: %s (0x%02x)", RepText(e.Rep), e.Rep)
}

// RepText maps REP codes (RFC 1928) to human-readable strings.
func RepText(rep byte) string {
	switch rep {
	case 0x00:
		return "succeeded"
	case 0x01:
		return "general SOCKS server failure"
	case 0x02:
		return "connection not allowed by ruleset"
	case 0x03:
		return "network unreachable"
	case 0x04:
		return "host unreachable"
	case 0x05:
		return "connection refused"
	case 0x06:
		return "TTL expired"
	case 0x07:
		return "command not supported"
	case 0x08:
		return "address type not supported"
	default:
		return "unassigned"
	}
}

// wrap annotates err with op. Errors that did not come from the transport are
// treated as protocol violations and additionally wrap ErrMalformed.
func wrap(op string, err error) error {
	if isTransportErr(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
}

func isTransportErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
