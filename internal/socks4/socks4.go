// Package socks4 implements the client side of the SOCKS4 and SOCKS4a CONNECT
// handshake over an existing connection.
package socks4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
)

const (
	version    = 0x04
	cmdConnect = 0x01

	// RepGranted is the only success reply code.
	RepGranted = 0x5a
	// RepRejected is a generic rejection or failure.
	RepRejected = 0x5b
	// RepNoIdentd means the server could not reach identd on the client.
	RepNoIdentd = 0x5c
	// RepIdentMismatch means identd reported a different user id.
	RepIdentMismatch = 0x5d
)

// ErrMalformed marks a reply that does not follow the protocol.
var ErrMalformed = errors.New("socks4: malformed reply")

// ReplyError is a reply with a code other than RepGranted.
type ReplyError struct {
	Code byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks4: request %s (0x%02x)", codeText(e.Code), e.Code)
}

func codeText(code byte) string {
	switch code {
	case RepGranted:
		return "granted"
	case RepRejected:
		return "rejected or failed"
	case RepNoIdentd:
		return "rejected: identd unreachable"
	case RepIdentMismatch:
		return "rejected: identd user mismatch"
	default:
		return "failed with unknown code"
	}
}

// Connect asks the server on conn to connect to host:port.
//
// An IPv4 literal host is sent as a plain SOCKS4 request; anything else is sent
// as a SOCKS4a request so the server resolves the name. IPv6 is not
// expressible in either variant.
func Connect(conn net.Conn, host string, port int, userID string) error {
	req, err := buildRequest(host, port, userID)
	if err != nil {
		return err
	}

	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	// VN CD DSTPORT(2) DSTIP(4)
	var rep [8]byte
	if _, err := io.ReadFull(conn, rep[:]); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep[0] != 0x00 {
		return fmt.Errorf("%w: reply version 0x%02x", ErrMalformed, rep[0])
	}
	if rep[1] != RepGranted {
		return &ReplyError{Code: rep[1]}
	}
	return nil
}

func buildRequest(host string, port int, userID string) ([]byte, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("socks4: invalid port %d", port)
	}

	req := make([]byte, 0, 9+len(userID)+len(host)+1)
	req = append(req, version, cmdConnect)
	req = binary.BigEndian.AppendUint16(req, uint16(port))

	if ip := net.ParseIP(host); ip != nil {
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("socks4: IPv6 destination %s not supported", host)
		}
		req = append(req, ip4...)
		req = append(req, userID...)
		req = append(req, 0x00)
		return req, nil
	}

	if host == "" || len(host) > 255 {
		return nil, fmt.Errorf("socks4: invalid host %q", host)
	}
	// SOCKS4a: DSTIP 0.0.0.x with x != 0, hostname follows the user id.
	req = append(req, 0x00, 0x00, 0x00, 0x01)
	req = append(req, userID...)
	req = append(req, 0x00)
	req = append(req, host...)
	req = append(req, 0x00)
	return req, nil
}

// Request is a parsed SOCKS4/4a CONNECT request, as seen by a server.
type Request struct {
	Host   string
	Port   int
	UserID string
}

// Address returns host:port.
func (r *Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// ReadRequest reads a CONNECT request from a client.
func ReadRequest(r io.Reader) (*Request, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if hdr[0] != version || hdr[1] != cmdConnect {
		return nil, fmt.Errorf("socks4: unsupported request 0x%02x 0x%02x", hdr[0], hdr[1])
	}

	user, err := readCString(r)
	if err != nil {
		return nil, err
	}

	req := &Request{Port: int(binary.BigEndian.Uint16(hdr[2:4])), UserID: user}
	ip := net.IP(hdr[4:8])
	if ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] != 0 {
		if req.Host, err = readCString(r); err != nil {
			return nil, err
		}
		return req, nil
	}
	req.Host = ip.String()
	return req, nil
}

// WriteReply writes a reply with the given code and a zero bound address.
func WriteReply(w io.Writer, code byte) error {
	_, err := w.Write([]byte{0x00, code, 0, 0, 0, 0, 0, 0})
	return err
}

func readCString(r io.Reader) (string, error) {
	var (
		b   [1]byte
		out []byte
	)
	for len(out) <= 255 {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", fmt.Errorf("read string: %w", err)
		}
		if b[0] == 0x00 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
	return "", errors.New("socks4: string too long")
}
