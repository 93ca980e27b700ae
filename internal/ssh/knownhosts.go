package ssh

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// NewHostKeyCallback returns a host key check backed by the known_hosts file
// at path, or nil when path is empty (no checking).
//
// Unknown hosts are appended to the file the first time they are seen. A host
// whose recorded key differs fails with ErrHostKeyMismatch. The file and its
// directory are created if missing.
func NewHostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("known_hosts dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600) //nolint:gosec // Path is from user config.
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	_ = f.Close()

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}

	// Hosts learned since the file was loaded; knownhosts.New does not reread.
	var (
		mu      sync.Mutex
		learned = map[string]ssh.PublicKey{}
	)

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return fmt.Errorf("%w for %s: %w", ErrHostKeyMismatch, hostname, err)
		}

		host := knownhosts.Normalize(hostname)

		mu.Lock()
		defer mu.Unlock()

		if prev, ok := learned[host]; ok {
			if string(prev.Marshal()) != string(key.Marshal()) {
				return fmt.Errorf("%w for %s", ErrHostKeyMismatch, hostname)
			}
			return nil
		}

		out, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // Path is from user config.
		if err != nil {
			return fmt.Errorf("known_hosts: %w", err)
		}
		defer out.Close()

		if _, err := out.WriteString(knownhosts.Line([]string{host}, key) + "\n"); err != nil {
			return fmt.Errorf("known_hosts: %w", err)
		}
		learned[host] = key

		slog.Info("ssh: learned host key", "host", hostname, "file", path)
		return nil
	}, nil
}
