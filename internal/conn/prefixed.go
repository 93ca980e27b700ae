package conn

import (
	"net"
	"sync"
)

// Prefixed is a net.Conn that returns buffered bytes before reading from the
// underlying connection.
//
// Handshake parsers that read past the end of a protocol header wrap the
// connection in a Prefixed so the surplus reaches the next reader intact.
type Prefixed struct {
	net.Conn

	mu      sync.Mutex
	pending []byte
}

// WithPrefix returns c unchanged if prefix is empty, or a *Prefixed that
// yields a copy of prefix first.
func WithPrefix(c net.Conn, prefix []byte) net.Conn {
	if len(prefix) == 0 {
		return c
	}
	return &Prefixed{Conn: c, pending: append([]byte(nil), prefix...)}
}

// Read drains the pending prefix before reading from the wrapped conn.
func (c *Prefixed) Read(b []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()
	return c.Conn.Read(b)
}

// Buffered reports how many replayed bytes are still pending.
func (c *Prefixed) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
