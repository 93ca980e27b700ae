package socks5

import (
	"errors"
	"fmt"
	"net"
	"slices"

	txsocks5 "github.com/txthinking/socks5"
)

// ErrUnsupportedCommand is returned by Accept for anything but CONNECT. The
// client has already been told.
var ErrUnsupportedCommand = errors.New("socks5: only CONNECT is supported")

// Request is a CONNECT request read by Accept. It must be answered with
// exactly one of Grant or Reject.
type Request struct {
	conn net.Conn
	req  *txsocks5.Request
}

// Address is the requested destination as host:port.
func (r *Request) Address() string {
	return r.req.Address()
}

// Grant sends a success reply naming bound as the proxy's local address.
func (r *Request) Grant(bound net.Addr) error {
	atyp, addr, port, err := txsocks5.ParseAddress(bound.String())
	if err != nil {
		return fmt.Errorf("parse bound address %q: %w", bound, err)
	}
	if atyp == txsocks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := txsocks5.NewReply(txsocks5.RepSuccess, atyp, addr, port).WriteTo(r.conn); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// Reject sends a failure reply with code rep.
func (r *Request) Reject(rep byte) {
	writeFailure(r.conn, rep, r.req.Atyp)
}

// Accept runs the server half of a handshake: method selection,
// username/password check when auth has a username, and the command request.
func Accept(conn net.Conn, auth Auth) (*Request, error) {
	if err := authenticate(conn, auth); err != nil {
		return nil, err
	}

	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if req.Cmd != txsocks5.CmdConnect {
		writeFailure(conn, txsocks5.RepCommandNotSupported, req.Atyp)
		return nil, fmt.Errorf("%w: got 0x%02x", ErrUnsupportedCommand, req.Cmd)
	}
	return &Request{conn: conn, req: req}, nil
}

func authenticate(conn net.Conn, auth Auth) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}

	want := byte(txsocks5.MethodNone)
	if auth.Username != "" {
		want = txsocks5.MethodUsernamePassword
	}
	if !slices.Contains(neg.Methods, want) {
		_, _ = txsocks5.NewNegotiationReply(methodNoAcceptable).WriteTo(conn)
		return ErrNoAcceptableMethods
	}
	if _, err := txsocks5.NewNegotiationReply(want).WriteTo(conn); err != nil {
		return fmt.Errorf("write method: %w", err)
	}
	if want == txsocks5.MethodNone {
		return nil
	}

	up, err := txsocks5.NewUserPassNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	status := byte(txsocks5.UserPassStatusSuccess)
	if string(up.Uname) != auth.Username || string(up.Passwd) != auth.Password {
		status = txsocks5.UserPassStatusFailure
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(status).WriteTo(conn); err != nil {
		return fmt.Errorf("write auth status: %w", err)
	}
	if status != txsocks5.UserPassStatusSuccess {
		return ErrAuthFailed
	}
	return nil
}

// writeFailure replies with rep and an all-zero bound address of the
// request's family.
func writeFailure(conn net.Conn, rep, atyp byte) {
	reply := txsocks5.NewReply(rep, txsocks5.ATYPIPv4, net.IPv4zero.To4(), []byte{0, 0})
	if atyp == txsocks5.ATYPIPv6 {
		reply = txsocks5.NewReply(rep, txsocks5.ATYPIPv6, net.IPv6zero, []byte{0, 0})
	}
	_, _ = reply.WriteTo(conn)
}
