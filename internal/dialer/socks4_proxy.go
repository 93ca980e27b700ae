package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/die-net/tunnelcheck/internal/socks4"
)

func (n *Negotiator) socks4(ctx context.Context, c net.Conn, p Descriptor, dst Destination) (net.Conn, error) {
	host := dst.Host
	if n.resolver != nil && net.ParseIP(host) == nil {
		ip, err := n.resolver.lookupIPv4(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("socks4 resolve %s: %w", host, err)
		}
		host = ip.String()
	}

	if err := socks4.Connect(c, host, dst.Port, p.Username); err != nil {
		return nil, fmt.Errorf("socks4 proxy %s: %w", p.Addr(), err)
	}
	return c, nil
}

// resolver looks up IPv4 addresses for SOCKS4 requests. Concurrent lookups
// of the same name share one query.
type resolver struct {
	timeout time.Duration
	sf      singleflight.Group
}

func newResolver(timeout time.Duration) *resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &resolver{timeout: timeout}
}

func (r *resolver) lookupIPv4(ctx context.Context, host string) (net.IP, error) {
	ch := r.sf.DoChan(host, func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		ips, err := net.DefaultResolver.LookupIP(lctx, "ip4", host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, errors.New("no IPv4 address")
		}
		return ips[0], nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(net.IP), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
