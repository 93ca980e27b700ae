package ssh

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

var (
	// ErrHandshake wraps any failure of the SSH transport handshake.
	ErrHandshake = errors.New("ssh: handshake failed")
	// ErrAuthFailed means the server accepted none of the offered credentials.
	ErrAuthFailed = errors.New("ssh: authentication failed")
	// ErrHostKeyMismatch means the server presented a key different from the
	// one recorded in known_hosts.
	ErrHostKeyMismatch = errors.New("ssh: host key mismatch")
	// ErrChannelRejected means the server refused to open the tunnel channel.
	ErrChannelRejected = errors.New("ssh: channel rejected")
)

func handshakeError(err error) error {
	if errors.Is(err, ErrHostKeyMismatch) {
		return err
	}
	// x/crypto/ssh has no typed error for exhausted auth methods.
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrHandshake, err)
}

func channelError(err error) error {
	var oce *ssh.OpenChannelError
	if errors.As(err, &oce) {
		return fmt.Errorf("%w: %s (%s)", ErrChannelRejected, oce.Message, oce.Reason)
	}
	return err
}
