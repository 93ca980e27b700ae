package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// directTCPIPPayload is the RFC 4254 section 7.2 channel payload.
type directTCPIPPayload struct {
	Host       string
	Port       uint32
	OriginHost string
	OriginPort uint32
}

// StartSSHServer runs an SSH server that accepts password authentication for
// one user and serves direct-tcpip channels by dialing the requested target.
func StartSSHServer(t *testing.T, ctx context.Context, username, password string) net.Listener {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if meta.User() != username || string(pass) != password {
				return nil, errors.New("invalid credentials")
			}
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(signer)

	return serve(t, ctx, func(c net.Conn) {
		sc, chans, reqs, err := ssh.NewServerConn(c, cfg)
		if err != nil {
			return
		}
		defer sc.Close()
		go ssh.DiscardRequests(reqs)

		for newChan := range chans {
			if newChan.ChannelType() != "direct-tcpip" {
				_ = newChan.Reject(ssh.UnknownChannelType, "unsupported channel")
				continue
			}

			var p directTCPIPPayload
			if err := ssh.Unmarshal(newChan.ExtraData(), &p); err != nil {
				_ = newChan.Reject(ssh.Prohibited, "bad direct-tcpip payload")
				continue
			}

			var d net.Dialer
			dst, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))))
			if err != nil {
				_ = newChan.Reject(ssh.ConnectionFailed, "dial failed")
				continue
			}

			ch, chReqs, err := newChan.Accept()
			if err != nil {
				_ = dst.Close()
				continue
			}
			go ssh.DiscardRequests(chReqs)
			go func() {
				defer ch.Close()
				defer dst.Close()
				copyChannel(ch, dst)
			}()
		}
	})
}

func copyChannel(ch ssh.Channel, dst net.Conn) {
	var g errgroup.Group
	g.Go(func() error {
		defer dst.Close()
		_, err := io.Copy(dst, ch)
		return err
	})
	g.Go(func() error {
		defer ch.Close()
		_, err := io.Copy(ch, dst)
		return err
	})
	_ = g.Wait()
}
