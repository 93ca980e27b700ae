package probe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/die-net/tunnelcheck/internal/dialer"
)

// HTTP sends HEAD / and accepts any parseable response, whatever its status.
type HTTP struct{}

func (HTTP) Probe(ctx context.Context, conn net.Conn, dst dialer.Destination) (string, error) {
	defer applyDeadline(ctx, conn)()

	host := dst.Host
	if dst.Port != 80 {
		host = dst.Addr()
	}
	req := &http.Request{
		Method:     http.MethodHead,
		URL:        &url.URL{Path: "/"},
		Host:       host,
		Header:     http.Header{"User-Agent": {"tunnelcheck"}},
		Close:      true,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	if err := req.Write(conn); err != nil {
		return "", fmt.Errorf("http probe: write: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return "", fmt.Errorf("http probe: read: %w", err)
	}
	_ = resp.Body.Close()

	if server := resp.Header.Get("Server"); server != "" {
		return resp.Status + " (" + server + ")", nil
	}
	return resp.Status, nil
}
