package dialer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/die-net/tunnelcheck/internal/testutil"
)

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func chunks(s ...string) io.Reader {
	r := &chunkReader{}
	for _, c := range s {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func TestReadConnectResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		r            io.Reader
		wantCode     int
		wantLeftover string
		wantErr      error
	}{
		{
			name:     "single read",
			r:        chunks("HTTP/1.1 200 Connection established\r\n\r\n"),
			wantCode: 200,
		},
		{
			name:     "terminator split across reads",
			r:        chunks("HTTP/1.1 200 OK\r\n\r", "\n"),
			wantCode: 200,
		},
		{
			name:     "terminator split in the middle",
			r:        chunks("HTTP/1.0 200 OK\r\nVia: x\r", "\n\r\n"),
			wantCode: 200,
		},
		{
			name:     "one byte at a time",
			r:        iotest.OneByteReader(strings.NewReader("HTTP/1.1 204 No Content\r\nX: y\r\n\r\n")),
			wantCode: 204,
		},
		{
			name:         "read-ahead is kept",
			r:            chunks("HTTP/1.1 200 OK\r\n\r\n\x00\x01data"),
			wantCode:     200,
			wantLeftover: "\x00\x01data",
		},
		{
			name:     "proxy auth required",
			r:        chunks("HTTP/1.1 407 Proxy Authentication Required\r\nProxy-Authenticate: Basic\r\n\r\n"),
			wantCode: 407,
		},
		{
			name:    "not http",
			r:       chunks("SSH-2.0-OpenSSH_9.6\r\n\r\n"),
			wantErr: errMalformed,
		},
		{
			name:    "garbage status code",
			r:       chunks("HTTP/1.1 2xx OK\r\n\r\n"),
			wantErr: errMalformed,
		},
		{
			name:    "closed inside head",
			r:       chunks("HTTP/1.1 200 OK\r\n"),
			wantErr: errMalformed,
		},
		{
			name:    "closed before anything",
			r:       chunks(),
			wantErr: io.EOF,
		},
		{
			name:    "head too large",
			r:       io.MultiReader(strings.NewReader("HTTP/1.1 200 OK\r\n"), strings.NewReader(strings.Repeat("X-Pad: y\r\n", 2000))),
			wantErr: errMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, _, leftover, err := readConnectResponse(tt.r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if code != tt.wantCode {
				t.Fatalf("code %d want %d", code, tt.wantCode)
			}
			if !bytes.Equal(leftover, []byte(tt.wantLeftover)) {
				t.Fatalf("leftover %q want %q", leftover, tt.wantLeftover)
			}
		})
	}
}

func TestNegotiateHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()
	openLn := testutil.StartHTTPConnectProxy(t, ctx, "", "")
	defer openLn.Close()
	authLn := testutil.StartHTTPConnectProxy(t, ctx, "alice", "s3cret")
	defer authLn.Close()

	n := newTestNegotiator(t, Config{})
	dst := destinationOf(t, echoLn.Addr())

	tests := []struct {
		name     string
		proxy    Descriptor
		wantKind ErrorKind
	}{
		{name: "open proxy", proxy: descriptorOf(t, KindHTTP, openLn.Addr(), "", "")},
		{name: "https without tls", proxy: descriptorOf(t, KindHTTPS, openLn.Addr(), "", "")},
		{name: "credentials", proxy: descriptorOf(t, KindHTTP, authLn.Addr(), "alice", "s3cret")},
		{name: "missing credentials", proxy: descriptorOf(t, KindHTTP, authLn.Addr(), "", ""), wantKind: ProxyRejected},
		{name: "wrong credentials", proxy: descriptorOf(t, KindHTTP, authLn.Addr(), "alice", "nope"), wantKind: ProxyRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.Negotiate(ctx, tt.proxy, dst, 2*time.Second)
			assertResult(t, res, tt.wantKind)
			if res.Conn != nil {
				defer res.Conn.Close()
				testutil.AssertEcho(t, res.Conn, res.Conn, []byte("hello"))
			}
			if tt.wantKind == ProxyRejected {
				var se *StatusError
				if !errors.As(res.Err, &se) || se.Code != http.StatusProxyAuthRequired {
					t.Fatalf("expected 407 StatusError, got %v", res.Err)
				}
			}
		})
	}
}

func TestNegotiateHTTPReplaysReadAhead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		if _, err := http.ReadRequest(bufio.NewReader(c)); err != nil {
			return
		}
		_, _ = c.Write([]byte("HTTP/1.1 200 OK\r\n\r\nBANNER"))
		_, _ = io.Copy(io.Discard, c)
	})
	defer wait()

	n := newTestNegotiator(t, Config{})
	res := n.Negotiate(ctx, descriptorOf(t, KindHTTP, ln.Addr(), "", ""), Destination{Host: "mc.example", Port: 25565}, time.Second)
	assertResult(t, res, "")
	defer res.Conn.Close()

	buf := make([]byte, len("BANNER"))
	if _, err := io.ReadFull(res.Conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "BANNER" {
		t.Fatalf("got %q", buf)
	}
}

func TestNegotiateHTTPGarbage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		if _, err := http.ReadRequest(bufio.NewReader(c)); err != nil {
			return
		}
		_, _ = c.Write([]byte("\x05\x00garbage\r\n\r\n"))
		_, _ = io.Copy(io.Discard, c)
	})
	defer wait()

	n := newTestNegotiator(t, Config{})
	res := n.Negotiate(ctx, descriptorOf(t, KindHTTP, ln.Addr(), "", ""), Destination{Host: "mc.example", Port: 25565}, time.Second)
	assertResult(t, res, ProtocolError)
}
