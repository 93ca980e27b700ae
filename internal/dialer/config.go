package dialer

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Config holds settings shared by every negotiation.
type Config struct {
	// DialTimeout caps DNS lookups done on behalf of SOCKS4 clients. The TCP
	// connect itself is bounded by the negotiation deadline.
	DialTimeout time.Duration
	KeepAlive   net.KeepAliveConfig

	// Forward makes the TCP connection to each candidate (or to the
	// destination for direct). Nil means a plain net.Dialer.
	Forward proxy.ContextDialer

	// HTTPSOverTLS wraps the connection to https proxies in TLS before
	// CONNECT. Without it https is treated like http.
	HTTPSOverTLS bool
	// SOCKS4ResolveLocally resolves hostnames to IPv4 before sending a plain
	// SOCKS4 request instead of using SOCKS4a.
	SOCKS4ResolveLocally bool

	// SSHKeyPath is "", "agent" or a private key file.
	SSHKeyPath string
	// SSHKnownHostsPath enables host key checking with trust on first use.
	SSHKnownHostsPath string
}

func (c *Config) forward() proxy.ContextDialer {
	if c.Forward != nil {
		return c.Forward
	}
	return &net.Dialer{KeepAliveConfig: c.KeepAlive}
}

// ForwardFromURL builds a Forward dialer that reaches candidates through the
// upstream proxy at rawURL (socks5://[user:pass@]host:port, or anything else
// golang.org/x/net/proxy understands).
func ForwardFromURL(rawURL string, ka net.KeepAliveConfig) (proxy.ContextDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return nil, errors.New("invalid url: missing scheme")
	}

	d, err := proxy.FromURL(u, &net.Dialer{KeepAliveConfig: ka})
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%s upstream does not support contexts", u.Scheme)
	}
	return cd, nil
}
