package ssh

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// ClientConfig holds what is needed to authenticate to an SSH server.
type ClientConfig struct {
	Username string
	// Password is offered after any Signers.
	Password string
	Signers  []ssh.Signer
	// HostKeyCallback verifies the server's host key. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// AuthMethods returns the auth methods to offer, public keys first.
func (c *ClientConfig) AuthMethods() []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if len(c.Signers) > 0 {
		methods = append(methods, ssh.PublicKeys(c.Signers...))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	return methods
}

// Validate reports configuration that can never authenticate.
func (c *ClientConfig) Validate() error {
	if c.Username == "" {
		return errors.New("ssh: missing username")
	}
	if c.Password == "" && len(c.Signers) == 0 {
		return errors.New("ssh: missing password or key")
	}
	return nil
}

// Tunnel runs the SSH handshake over conn, which must already be connected to
// the server at addr, and opens a direct-tcpip channel to dst.
//
// The returned conn owns the SSH transport: closing it closes the channel, the
// client and conn. Deadlines set on it apply to the underlying transport.
// On error, conn is closed.
func Tunnel(ctx context.Context, conn net.Conn, addr, dst string, cfg ClientConfig) (net.Conn, error) {
	hostKeyCallback := cfg.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Caller opted out of host key checking.
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            cfg.AuthMethods(),
		HostKeyCallback: hostKeyCallback,
	}

	cc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, handshakeError(err)
	}
	client := ssh.NewClient(cc, chans, reqs)

	ch, err := client.DialContext(ctx, "tcp", dst)
	if err != nil {
		_ = client.Close()
		return nil, channelError(err)
	}

	return &tunnelConn{Conn: ch, client: client, transport: conn}, nil
}

// tunnelConn is a direct-tcpip channel that tears down its transport on
// Close. Channels do not support deadlines, so those go to the transport.
type tunnelConn struct {
	net.Conn
	client    *ssh.Client
	transport net.Conn
}

func (c *tunnelConn) Close() error {
	err := c.Conn.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *tunnelConn) SetDeadline(t time.Time) error      { return c.transport.SetDeadline(t) }
func (c *tunnelConn) SetReadDeadline(t time.Time) error  { return c.transport.SetReadDeadline(t) }
func (c *tunnelConn) SetWriteDeadline(t time.Time) error { return c.transport.SetWriteDeadline(t) }
