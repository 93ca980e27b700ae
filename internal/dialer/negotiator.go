package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/net/proxy"

	"github.com/die-net/tunnelcheck/internal/race"
	"github.com/die-net/tunnelcheck/internal/ssh"
)

// Result is the outcome of one negotiation. Exactly one of Conn and Err is
// set; a non-nil Conn belongs to the caller.
type Result struct {
	Proxy   Descriptor
	Kind    Kind
	Conn    net.Conn
	Err     *Failure
	Elapsed time.Duration
}

// OK reports whether the tunnel was established.
func (r Result) OK() bool { return r.Err == nil }

// handshaker turns a connected socket into a tunnel to dst. It must not
// close c; the caller does on failure.
type handshaker func(ctx context.Context, c net.Conn, p Descriptor, dst Destination) (net.Conn, error)

// Negotiator establishes tunnels. It is safe for concurrent use.
type Negotiator struct {
	cfg      Config
	forward  proxy.ContextDialer
	resolver *resolver

	sshSigners []gossh.Signer
	sshHostKey gossh.HostKeyCallback

	handshakers map[Kind]handshaker
}

// New builds a Negotiator. SSH keys and known_hosts are loaded here, once.
func New(cfg Config) (*Negotiator, error) {
	n := &Negotiator{
		cfg:     cfg,
		forward: cfg.forward(),
	}

	if cfg.SOCKS4ResolveLocally {
		n.resolver = newResolver(cfg.DialTimeout)
	}

	var err error
	if n.sshSigners, err = ssh.LoadSigners(cfg.SSHKeyPath); err != nil {
		return nil, fmt.Errorf("dialer: %w", err)
	}
	if n.sshHostKey, err = ssh.NewHostKeyCallback(cfg.SSHKnownHostsPath); err != nil {
		return nil, fmt.Errorf("dialer: %w", err)
	}

	n.handshakers = map[Kind]handshaker{
		KindDirect: direct,
		KindSOCKS5: n.socks5,
		KindSOCKS4: n.socks4,
		KindHTTP:   n.httpConnect,
		KindHTTPS:  n.httpsConnect,
		KindSSH:    n.ssh,
	}
	return n, nil
}

// Negotiate opens a tunnel to dst through p, resolving within timeout.
//
// The timeout covers the TCP connect and the handshake together. Whatever
// happens first (success, failure or the deadline) decides the result; a
// connection that completes after the deadline is closed. On failure no
// socket is left open.
func (n *Negotiator) Negotiate(ctx context.Context, p Descriptor, dst Destination, timeout time.Duration) Result {
	start := time.Now()
	res := Result{Proxy: p, Kind: p.Kind}

	fail := func(err error) Result {
		res.Err = Classify(err)
		res.Elapsed = time.Since(start)
		return res
	}

	if err := dst.Validate(); err != nil {
		return fail(err)
	}
	if !p.Kind.Concrete() {
		return fail(badRequest("proxy kind %q cannot be negotiated", p.Kind))
	}
	h := n.handshakers[p.Kind]
	if p.Kind != KindDirect {
		if err := p.validate(); err != nil {
			return fail(err)
		}
	}
	if timeout <= 0 {
		return fail(badRequest("timeout must be positive"))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := race.Run(ctx, func(ctx context.Context) (net.Conn, error) {
		return n.establish(ctx, h, p, dst)
	}, closeConn)
	if err != nil {
		// Once the deadline has passed, errors from the closed socket are
		// just the deadline showing through.
		if cerr := ctx.Err(); cerr != nil {
			err = fmt.Errorf("%s via %s: %w", dst.Addr(), p.Kind, cerr)
		}
		return fail(err)
	}

	res.Conn = c
	res.Elapsed = time.Since(start)
	return res
}

func (n *Negotiator) establish(ctx context.Context, h handshaker, p Descriptor, dst Destination) (net.Conn, error) {
	target := p.Addr()
	if p.Kind == KindDirect {
		target = dst.Addr()
	}

	c, err := n.forward.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	// Unblock any handshake read the moment the deadline passes.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	if dl, ok := ctx.Deadline(); ok {
		_ = c.SetDeadline(dl)
	}

	tc, err := h(ctx, c, p, dst)
	if !stop() {
		if tc != nil {
			_ = tc.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	_ = tc.SetDeadline(time.Time{})
	return tc, nil
}

func closeConn(c net.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
