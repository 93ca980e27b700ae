// Package testutil holds fixtures shared by package tests: echo servers,
// scripted single-connection servers and small working proxies.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
)

// StartEchoTCPServer echoes everything back on every accepted connection
// until ctx ends or the listener is closed.
func StartEchoTCPServer(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	return serve(t, ctx, func(c net.Conn) {
		_, _ = io.Copy(c, c)
	})
}

// AssertEcho writes msg to w and expects the same bytes back from r.
func AssertEcho(t *testing.T, w io.Writer, r io.Reader, msg []byte) {
	t.Helper()

	if _, err := w.Write(msg); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, msg) {
		t.Fatalf("expected %q got %q", string(msg), string(buf))
	}
}

// ClosedAddr returns a loopback address that nothing listens on.
func ClosedAddr(t *testing.T, ctx context.Context) string {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// StartBlackholeServer accepts connections and never writes to them.
func StartBlackholeServer(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	return serve(t, ctx, func(c net.Conn) {
		_, _ = io.Copy(io.Discard, c)
	})
}
