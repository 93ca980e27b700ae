package dialer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/die-net/tunnelcheck/internal/conn"
)

// maxConnectResponse caps the CONNECT response header block.
const maxConnectResponse = 16 << 10

var crlfcrlf = []byte("\r\n\r\n")

func (n *Negotiator) httpsConnect(ctx context.Context, c net.Conn, p Descriptor, dst Destination) (net.Conn, error) {
	if !n.cfg.HTTPSOverTLS {
		return n.httpConnect(ctx, c, p, dst)
	}

	tlsConn := tls.Client(c, &tls.Config{MinVersion: tls.VersionTLS12, ServerName: p.Host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("https proxy %s tls handshake: %w", p.Addr(), err)
	}
	return n.httpConnect(ctx, tlsConn, p, dst)
}

// httpConnect sends CONNECT and reads the response head byte-stream style,
// so any bytes the proxy sent past the head stay with the returned conn.
func (n *Negotiator) httpConnect(_ context.Context, c net.Conn, p Descriptor, dst Destination) (net.Conn, error) {
	address := dst.Addr()
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if p.HasAuth() {
		req.Header.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(p.Username+":"+p.Password)))
	}

	if err := req.Write(c); err != nil {
		return nil, fmt.Errorf("http proxy %s connect write: %w", p.Addr(), err)
	}

	code, status, leftover, err := readConnectResponse(c)
	if err != nil {
		return nil, fmt.Errorf("http proxy %s connect read: %w", p.Addr(), err)
	}
	if code < 200 || code > 299 {
		return nil, &StatusError{Code: code, Status: status}
	}

	return conn.WithPrefix(c, leftover), nil
}

// readConnectResponse reads until the end of the response head and parses
// its status line. The terminator may arrive split across reads. Bytes read
// past the head are returned as leftover.
func readConnectResponse(r io.Reader) (code int, status string, leftover []byte, err error) {
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)

	for {
		nr, rerr := r.Read(chunk)
		// The terminator can straddle the previous chunk.
		from := max(len(buf)-len(crlfcrlf)+1, 0)
		buf = append(buf, chunk[:nr]...)

		if i := bytes.Index(buf[from:], crlfcrlf); i >= 0 {
			end := from + i
			code, status, err = parseStatusLine(buf[:end])
			if err != nil {
				return 0, "", nil, err
			}
			return code, status, buf[end+len(crlfcrlf):], nil
		}

		if len(buf) > maxConnectResponse {
			return 0, "", nil, fmt.Errorf("%w: header block exceeds %d bytes", errMalformed, maxConnectResponse)
		}
		if rerr == io.EOF {
			if len(buf) == 0 {
				return 0, "", nil, io.EOF
			}
			return 0, "", nil, fmt.Errorf("%w: connection closed inside response head", errMalformed)
		}
		if rerr != nil {
			return 0, "", nil, rerr
		}
	}
}

// parseStatusLine parses "HTTP/1.x NNN reason" from the first line of head.
func parseStatusLine(head []byte) (int, string, error) {
	line, _, _ := bytes.Cut(head, []byte("\r\n"))

	proto, rest, ok := strings.Cut(string(line), " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return 0, "", fmt.Errorf("%w: status line %q", errMalformed, truncate(line, 64))
	}
	if _, _, ok := http.ParseHTTPVersion(proto); !ok {
		return 0, "", fmt.Errorf("%w: version %q", errMalformed, truncate([]byte(proto), 64))
	}

	codeStr, _, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || len(codeStr) != 3 || code < 100 {
		return 0, "", fmt.Errorf("%w: status code %q", errMalformed, truncate([]byte(codeStr), 16))
	}
	return code, strings.TrimSpace(rest), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
