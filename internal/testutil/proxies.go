package testutil

import (
	"bufio"
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"testing"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/tunnelcheck/internal/socks4"
	"github.com/die-net/tunnelcheck/internal/socks5"
)

// StartSOCKS5Proxy runs a working SOCKS5 CONNECT proxy. A non-empty auth
// requires username/password authentication.
func StartSOCKS5Proxy(t *testing.T, ctx context.Context, auth socks5.Auth) net.Listener {
	t.Helper()

	return serve(t, ctx, func(c net.Conn) {
		req, err := socks5.Accept(c, auth)
		if err != nil {
			return
		}

		var d net.Dialer
		dst, err := d.DialContext(ctx, "tcp", req.Address())
		if err != nil {
			req.Reject(txsocks5.RepConnectionRefused)
			return
		}
		defer dst.Close()

		if err := req.Grant(dst.LocalAddr()); err != nil {
			return
		}
		relay(ctx, c, dst)
	})
}

// StartSOCKS4Proxy runs a working SOCKS4/4a CONNECT proxy. Requests whose
// user id differs from userID are rejected with 0x5d.
func StartSOCKS4Proxy(t *testing.T, ctx context.Context, userID string) net.Listener {
	t.Helper()

	return serve(t, ctx, func(c net.Conn) {
		req, err := socks4.ReadRequest(c)
		if err != nil {
			return
		}
		if req.UserID != userID {
			_ = socks4.WriteReply(c, socks4.RepIdentMismatch)
			return
		}

		var d net.Dialer
		dst, err := d.DialContext(ctx, "tcp", req.Address())
		if err != nil {
			_ = socks4.WriteReply(c, socks4.RepRejected)
			return
		}
		defer dst.Close()

		if err := socks4.WriteReply(c, socks4.RepGranted); err != nil {
			return
		}
		relay(ctx, c, dst)
	})
}

// StartHTTPConnectProxy runs a working HTTP CONNECT proxy. When username is
// set, requests without matching Basic credentials get 407.
func StartHTTPConnectProxy(t *testing.T, ctx context.Context, username, password string) net.Listener {
	t.Helper()

	want := ""
	if username != "" {
		want = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}

	return serve(t, ctx, func(c net.Conn) {
		br := bufio.NewReader(c)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		if req.Method != http.MethodConnect {
			_, _ = c.Write([]byte("HTTP/1.1 405 Method Not Allowed\r\n\r\n"))
			return
		}
		if want != "" && req.Header.Get("Proxy-Authorization") != want {
			_, _ = c.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\nProxy-Authenticate: Basic\r\n\r\n"))
			return
		}

		var d net.Dialer
		dst, err := d.DialContext(ctx, "tcp", req.Host)
		if err != nil {
			_, _ = c.Write([]byte("HTTP/1.1 502 Bad Gateway\r\n\r\n"))
			return
		}
		defer dst.Close()

		if _, err := c.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n")); err != nil {
			return
		}
		if n := br.Buffered(); n > 0 {
			b, _ := br.Peek(n)
			if _, err := dst.Write(b); err != nil {
				return
			}
		}
		relay(ctx, c, dst)
	})
}
