// Package probe checks that an established tunnel actually reaches a live
// service on the far side.
//
// A probe runs on a conn the caller owns and never closes it. The deadline on
// ctx is applied to the conn while the probe runs.
package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/die-net/tunnelcheck/internal/dialer"
)

// Probe checks the service behind conn. On success it returns a short
// description of what answered, suitable for display.
type Probe interface {
	Probe(ctx context.Context, conn net.Conn, dst dialer.Destination) (string, error)
}

// Names lists the values Parse accepts.
var Names = []string{"none", "minecraft", "http"}

// Parse returns the probe called name. "none" and "" return nil.
func Parse(name string) (Probe, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "minecraft", "mc":
		return Minecraft{}, nil
	case "http":
		return HTTP{}, nil
	default:
		return nil, fmt.Errorf("unknown probe %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}

// applyDeadline copies ctx's deadline onto c and returns a func that clears
// it again.
func applyDeadline(ctx context.Context, c net.Conn) func() {
	dl, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	_ = c.SetDeadline(dl)
	return func() { _ = c.SetDeadline(time.Time{}) }
}
