package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/die-net/tunnelcheck/internal/dialer"
)

const (
	// statusProtocolVersion -1 asks the server to answer regardless of
	// which protocol version it speaks.
	statusProtocolVersion = -1
	nextStateStatus       = 1

	// maxStatusPacket bounds the status response; vanilla servers cap the
	// JSON at 32767 characters.
	maxStatusPacket = 1 << 18
)

// ErrBadStatus marks a status response that is not a Server List Ping reply.
var ErrBadStatus = errors.New("minecraft: malformed status response")

// Minecraft runs a Server List Ping. A server is live if it answers the
// status request with a well formed JSON status document.
type Minecraft struct{}

// Status is the subset of the status document the probe reports on.
type Status struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
	} `json:"players"`
}

func (Minecraft) Probe(ctx context.Context, conn net.Conn, dst dialer.Destination) (string, error) {
	st, err := PingStatus(ctx, conn, dst)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (protocol %d, %d/%d players)", st.Version.Name, st.Version.Protocol, st.Players.Online, st.Players.Max), nil
}

// PingStatus sends the handshake and status request and decodes the reply.
func PingStatus(ctx context.Context, conn net.Conn, dst dialer.Destination) (*Status, error) {
	defer applyDeadline(ctx, conn)()

	var hs []byte
	hs = appendVarint(hs, 0x00)
	hs = appendVarint(hs, statusProtocolVersion)
	hs = appendString(hs, dst.Host)
	hs = binary.BigEndian.AppendUint16(hs, uint16(dst.Port))
	hs = appendVarint(hs, nextStateStatus)

	var out []byte
	out = appendPacket(out, hs)
	out = appendPacket(out, []byte{0x00})
	if _, err := conn.Write(out); err != nil {
		return nil, fmt.Errorf("minecraft: write status request: %w", err)
	}

	br := bufio.NewReader(conn)
	length, err := readVarint(br)
	if err != nil {
		return nil, fmt.Errorf("minecraft: read status length: %w", err)
	}
	if length <= 0 || length > maxStatusPacket {
		return nil, fmt.Errorf("%w: packet length %d", ErrBadStatus, length)
	}

	packet := make([]byte, length)
	if _, err := io.ReadFull(br, packet); err != nil {
		return nil, fmt.Errorf("minecraft: read status packet: %w", err)
	}

	pr := bytes.NewReader(packet)
	id, err := readVarint(pr)
	if err != nil || id != 0x00 {
		return nil, fmt.Errorf("%w: packet id %d", ErrBadStatus, id)
	}
	n, err := readVarint(pr)
	if err != nil || n < 0 || int(n) != pr.Len() {
		return nil, fmt.Errorf("%w: string length %d", ErrBadStatus, n)
	}

	var st Status
	if err := json.NewDecoder(pr).Decode(&st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadStatus, err)
	}
	return &st, nil
}

// Minecraft VarInts are LEB128 over the two's complement uint32, at most
// five bytes.
func appendVarint(b []byte, v int32) []byte {
	return binary.AppendUvarint(b, uint64(uint32(v)))
}

func readVarint(r io.ByteReader) (int32, error) {
	var v uint32
	for i := range 5 {
		c, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(c&0x7f) << (7 * i)
		if c&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, fmt.Errorf("%w: varint too long", ErrBadStatus)
}

func appendString(b []byte, s string) []byte {
	b = appendVarint(b, int32(len(s)))
	return append(b, s...)
}

func appendPacket(b, payload []byte) []byte {
	b = appendVarint(b, int32(len(payload)))
	return append(b, payload...)
}
