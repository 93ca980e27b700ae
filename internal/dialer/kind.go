package dialer

import (
	"strings"
)

// Kind is a proxy protocol.
type Kind string

const (
	KindSOCKS4 Kind = "socks4"
	KindSOCKS5 Kind = "socks5"
	KindHTTP   Kind = "http"
	KindHTTPS  Kind = "https"
	KindSSH    Kind = "ssh"
	KindDirect Kind = "direct"
	// KindAuto is a placeholder for "unknown protocol". The Negotiator rejects
	// it; callers resolve it to concrete kinds first.
	KindAuto Kind = "auto"
)

// AutoOrder is the order in which concrete kinds are tried for KindAuto.
var AutoOrder = []Kind{KindSOCKS5, KindSOCKS4, KindHTTP}

// ParseKind parses a kind name case-insensitively. "socks" is accepted as an
// alias for socks5.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSOCKS4, KindSOCKS5, KindHTTP, KindHTTPS, KindSSH, KindDirect, KindAuto:
		return k, nil
	case "socks":
		return KindSOCKS5, nil
	case "socks4a":
		return KindSOCKS4, nil
	default:
		return "", badRequest("unknown proxy kind %q", s)
	}
}

func (k Kind) String() string { return string(k) }

// Concrete reports whether k names a protocol that can be negotiated.
func (k Kind) Concrete() bool {
	switch k {
	case KindSOCKS4, KindSOCKS5, KindHTTP, KindHTTPS, KindSSH, KindDirect:
		return true
	default:
		return false
	}
}

func defaultPort(k Kind) int {
	switch k {
	case KindHTTP:
		return 80
	case KindHTTPS:
		return 443
	case KindSOCKS4, KindSOCKS5, KindAuto:
		return 1080
	case KindSSH:
		return 22
	default:
		return 0
	}
}
