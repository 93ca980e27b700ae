package ssh

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/die-net/tunnelcheck/internal/testutil"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  ClientConfig
		wantErr bool
	}{
		{name: "password", config: ClientConfig{Username: "user", Password: "pass"}},
		{name: "key", config: ClientConfig{Username: "user", Signers: []ssh.Signer{nil}}},
		{name: "missing username", config: ClientConfig{Password: "pass"}, wantErr: true},
		{name: "missing auth", config: ClientConfig{Username: "user"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestTunnel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	sshLn := testutil.StartSSHServer(t, ctx, "user", "pass")
	defer sshLn.Close()

	tests := []struct {
		name     string
		password string
		dst      string
		wantErr  error
	}{
		{name: "tunnel", password: "pass", dst: echoLn.Addr().String()},
		{name: "wrong password", password: "nope", dst: echoLn.Addr().String(), wantErr: ErrAuthFailed},
		{name: "unreachable destination", password: "pass", dst: testutil.ClosedAddr(t, ctx), wantErr: ErrChannelRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d net.Dialer
			c, err := d.DialContext(ctx, "tcp", sshLn.Addr().String())
			if err != nil {
				t.Fatal(err)
			}

			tc, err := Tunnel(ctx, c, sshLn.Addr().String(), tt.dst, ClientConfig{Username: "user", Password: tt.password})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer tc.Close()

			if err := tc.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
				t.Fatal(err)
			}
			testutil.AssertEcho(t, tc, tc, []byte("hello"))
		})
	}
}

func TestTunnelNotSSH(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		_, _ = c.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
	})
	defer wait()

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	_, err = Tunnel(ctx, c, ln.Addr().String(), "127.0.0.1:1", ClientConfig{Username: "user", Password: "pass"})
	if !errors.Is(err, ErrHandshake) {
		t.Fatalf("expected ErrHandshake, got %v", err)
	}
}
