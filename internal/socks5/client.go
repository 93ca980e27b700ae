package socks5

import (
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// RFC 1928: 0xFF indicates no acceptable methods.
const methodNoAcceptable = 0xff

// Auth holds optional username/password credentials.
type Auth struct {
	Username string
	Password string
}

// Complete reports whether both username and password are set.
func (a Auth) Complete() bool {
	return a.Username != "" && a.Password != ""
}

// ClientDial negotiates authentication on conn and then asks the server to
// CONNECT to address.
func ClientDial(conn net.Conn, auth Auth, address string) error {
	if err := ClientNegotiate(conn, auth); err != nil {
		return err
	}
	if err := ClientConnect(conn, address); err != nil {
		return err
	}
	return nil
}

// ClientNegotiate sends the method greeting and performs username/password
// authentication if the server selects it.
//
// Username/password is only offered when both credentials are set.
func ClientNegotiate(conn net.Conn, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Complete() {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return wrap("read negotiation", err)
	}

	switch neg.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if !auth.Complete() {
			return ErrAuthRequired
		}

		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(conn); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return wrap("read userpass", err)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return ErrAuthFailed
		}
		return nil
	case methodNoAcceptable:
		return ErrNoAcceptableMethods
	default:
		return fmt.Errorf("%w: unsupported negotiation method 0x%02x", ErrMalformed, neg.Method)
	}
}

// ClientConnect issues a CONNECT request for address and reads the reply,
// including the bound address.
func ClientConnect(conn net.Conn, address string) error {
	atyp, dstAddr, dstPort, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	if atyp == txsocks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(conn); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return wrap("read reply", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return &ReplyError{Rep: rep.Rep}
	}
	return nil
}
