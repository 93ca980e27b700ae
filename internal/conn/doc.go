// Package conn holds the read-ahead replaying conn returned by HTTP CONNECT
// negotiation.
package conn
