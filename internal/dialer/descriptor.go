package dialer

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Descriptor identifies one candidate proxy.
type Descriptor struct {
	Kind     Kind
	Host     string
	Port     int
	Username string
	Password string
}

// HasAuth reports whether both username and password are set.
func (d Descriptor) HasAuth() bool {
	return d.Username != "" && d.Password != ""
}

// Addr returns the proxy's host:port.
func (d Descriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String renders d as host:port[:user[:pass]], the format it is read in.
func (d Descriptor) String() string {
	host := d.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	s := host + ":" + strconv.Itoa(d.Port)
	if d.Username != "" {
		s += ":" + d.Username
	}
	if d.Password != "" {
		s += ":" + d.Password
	}
	return s
}

// Destination is where the tunnel should lead.
type Destination struct {
	Host string
	Port int
}

// Addr returns host:port.
func (d Destination) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Validate rejects an empty host or an out of range port.
func (d Destination) Validate() error {
	if d.Host == "" {
		return badRequest("missing destination host")
	}
	if d.Port < 1 || d.Port > 65535 {
		return badRequest("invalid destination port %d", d.Port)
	}
	return nil
}

// ParseDestination parses host:port.
func ParseDestination(s string) (Destination, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Destination{}, badRequest("invalid destination %q", s)
	}
	p, err := parsePort(port)
	if err != nil {
		return Destination{}, badRequest("invalid destination %q: %v", s, err)
	}
	d := Destination{Host: host, Port: p}
	if err := d.Validate(); err != nil {
		return Destination{}, err
	}
	return d, nil
}

// ParseDescriptor parses one proxy list line. Accepted forms:
//
//	host:port[:username[:password]]
//	scheme://host:port[:username[:password]]
//	scheme://[username[:password]@]host[:port]
//
// IPv6 hosts are bracketed. A scheme overrides kind; without one, kind is
// used. The password is everything after the third colon, so it may itself
// contain colons.
func ParseDescriptor(line string, kind Kind) (Descriptor, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return Descriptor{}, badRequest("empty proxy line")
	}

	if scheme, rest, ok := strings.Cut(s, "://"); ok {
		k, err := ParseKind(scheme)
		if err != nil {
			return Descriptor{}, err
		}
		kind = k
		if strings.Contains(rest, "@") {
			return parseURL(s, kind)
		}
		s = rest
	}

	var host string
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return Descriptor{}, badRequest("unterminated IPv6 host in %q", line)
		}
		host, s = s[1:end], s[end+1:]
		if !strings.HasPrefix(s, ":") {
			return Descriptor{}, badRequest("missing port in %q", line)
		}
		s = s[1:]
	} else {
		var ok bool
		host, s, ok = strings.Cut(s, ":")
		if !ok {
			return Descriptor{}, badRequest("missing port in %q", line)
		}
	}

	fields := strings.SplitN(s, ":", 3)
	port, err := parsePort(fields[0])
	if err != nil {
		return Descriptor{}, badRequest("invalid port in %q: %v", line, err)
	}

	d := Descriptor{Kind: kind, Host: host, Port: port}
	if len(fields) > 1 {
		d.Username = fields[1]
	}
	if len(fields) > 2 {
		d.Password = fields[2]
	}
	return d, d.validate()
}

func parseURL(s string, kind Kind) (Descriptor, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Descriptor{}, badRequest("invalid proxy url: %v", err)
	}
	if u.Path != "" && u.Path != "/" {
		return Descriptor{}, badRequest("invalid proxy url %q: path should be empty", s)
	}

	d := Descriptor{Kind: kind, Host: u.Hostname(), Port: defaultPort(kind)}
	if p := u.Port(); p != "" {
		if d.Port, err = parsePort(p); err != nil {
			return Descriptor{}, badRequest("invalid port in %q: %v", s, err)
		}
	}
	if u.User != nil {
		d.Username = u.User.Username()
		d.Password, _ = u.User.Password()
	}
	return d, d.validate()
}

func (d Descriptor) validate() error {
	if d.Host == "" {
		return badRequest("missing proxy host")
	}
	if d.Port < 1 || d.Port > 65535 {
		return badRequest("invalid proxy port %d", d.Port)
	}
	return nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, strconv.ErrRange
	}
	return p, nil
}
