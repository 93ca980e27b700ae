// Package dialer negotiates single-use tunnels through candidate proxies.
//
// A [Negotiator] takes a proxy [Descriptor] and a [Destination] and either
// returns a live net.Conn that reaches the destination through the proxy, or a
// classified [Failure]. One deadline covers the TCP connect and the whole
// protocol handshake, and no socket outlives a failed attempt.
//
// Supported kinds are SOCKS4/4a, SOCKS5, HTTP and HTTPS CONNECT, SSH
// direct-tcpip and plain direct connections.
package dialer
