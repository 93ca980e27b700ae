package testutil

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

func TestRelay(t *testing.T) {
	t.Parallel()

	clientApp, client := net.Pipe()
	upstream, upstreamApp := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		relay(context.Background(), client, upstream)
	}()

	go func() { _, _ = clientApp.Write([]byte("ping")) }()
	buf := make([]byte, 4)
	if _, err := io.ReadFull(upstreamApp, buf); err != nil || string(buf) != "ping" {
		t.Fatalf("upstream got %q, %v", buf, err)
	}

	go func() { _, _ = upstreamApp.Write([]byte("pong")) }()
	if _, err := io.ReadFull(clientApp, buf); err != nil || string(buf) != "pong" {
		t.Fatalf("client got %q, %v", buf, err)
	}

	// Closing one end tears down both.
	_ = clientApp.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not finish after close")
	}
	if _, err := upstreamApp.Read(buf); err == nil {
		t.Fatal("upstream side still open")
	}
}

func TestRelayCanceled(t *testing.T) {
	t.Parallel()

	_, client := net.Pipe()
	upstream, upstreamApp := net.Pipe()
	defer upstreamApp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay(ctx, client, upstream)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop on cancel")
	}
}
