// Package ssh opens single-use TCP tunnels through SSH servers.
//
// A tunnel is one SSH transport carrying one "direct-tcpip" channel, the
// same mechanism as ssh -W. The handshake runs over a connection the caller
// already dialed, so the caller keeps control of dialing and deadlines.
//
// Authentication uses a password, private keys, an SSH agent, or any mix of
// them. Host keys are checked against a known_hosts file with trust on first
// use, or not at all when no file is configured.
package ssh
