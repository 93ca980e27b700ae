package dialer

import (
	"context"
	"net"
)

// direct is a tunnel that is just the TCP connection to the destination.
func direct(_ context.Context, c net.Conn, _ Descriptor, _ Destination) (net.Conn, error) {
	return c, nil
}
