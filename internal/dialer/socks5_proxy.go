package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/die-net/tunnelcheck/internal/socks5"
)

func (n *Negotiator) socks5(_ context.Context, c net.Conn, p Descriptor, dst Destination) (net.Conn, error) {
	auth := socks5.Auth{Username: p.Username, Password: p.Password}
	if err := socks5.ClientDial(c, auth, dst.Addr()); err != nil {
		return nil, fmt.Errorf("socks5 proxy %s: %w", p.Addr(), err)
	}
	return c, nil
}
