package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// AgentKeySource is the key source value that selects the SSH agent.
const AgentKeySource = "agent"

// AgentAvailable reports whether SSH_AUTH_SOCK points somewhere.
func AgentAvailable() bool {
	return os.Getenv("SSH_AUTH_SOCK") != ""
}

// LoadSigners resolves a key source once, up front:
//   - "" means no key authentication
//   - "agent" asks the SSH agent for its keys
//   - anything else is a path to an OpenSSH private key file
func LoadSigners(source string) ([]ssh.Signer, error) {
	switch source {
	case "":
		return nil, nil
	case AgentKeySource:
		return agentSigners()
	}

	pem, err := os.ReadFile(source) //nolint:gosec // Path is from user config.
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", source, err)
	}
	return []ssh.Signer{signer}, nil
}

// agentSigners keeps the agent connection open for as long as the process
// runs; the returned signers sign through it.
func agentSigners() ([]ssh.Signer, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, errors.New("ssh agent: SSH_AUTH_SOCK not set")
	}

	var d net.Dialer
	conn, err := d.DialContext(context.Background(), "unix", socket)
	if err != nil {
		return nil, fmt.Errorf("ssh agent: %w", err)
	}

	signers, err := agent.NewClient(conn).Signers()
	if err == nil && len(signers) == 0 {
		err = errors.New("no keys loaded")
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh agent: %w", err)
	}
	return signers, nil
}
