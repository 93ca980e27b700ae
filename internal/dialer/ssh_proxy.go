package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/tunnelcheck/internal/ssh"
)

// ssh authenticates with the descriptor's password plus any configured keys
// and opens a direct-tcpip channel to dst.
func (n *Negotiator) ssh(ctx context.Context, c net.Conn, p Descriptor, dst Destination) (net.Conn, error) {
	cfg := ssh.ClientConfig{
		Username:        p.Username,
		Password:        p.Password,
		Signers:         n.sshSigners,
		HostKeyCallback: n.sshHostKey,
	}
	if err := cfg.Validate(); err != nil {
		return nil, badRequest("ssh proxy %s: %v", p.Addr(), err)
	}

	tc, err := ssh.Tunnel(ctx, c, p.Addr(), dst.Addr(), cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh proxy %s: %w", p.Addr(), err)
	}
	return tc, nil
}
