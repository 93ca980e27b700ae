package socks4

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		user    string
		want    []byte
		wantErr bool
	}{
		{
			name: "ipv4",
			host: "10.1.2.3",
			port: 25565,
			want: []byte{0x04, 0x01, 0x63, 0xdd, 10, 1, 2, 3, 0x00},
		},
		{
			name: "ipv4 with user id",
			host: "10.1.2.3",
			port: 80,
			user: "bob",
			want: []byte{0x04, 0x01, 0x00, 0x50, 10, 1, 2, 3, 'b', 'o', 'b', 0x00},
		},
		{
			name: "socks4a hostname",
			host: "mc.example",
			port: 80,
			want: append([]byte{0x04, 0x01, 0x00, 0x50, 0, 0, 0, 1, 0x00}, append([]byte("mc.example"), 0x00)...),
		},
		{name: "ipv6 unsupported", host: "::1", port: 80, wantErr: true},
		{name: "bad port", host: "10.1.2.3", port: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildRequest(tt.host, tt.port, tt.user)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got % x want % x", got, tt.want)
			}
		})
	}
}

func TestConnectRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		code     byte
		wantCode byte
	}{
		{name: "granted", host: "127.0.0.1", code: RepGranted},
		{name: "granted 4a", host: "mc.example", code: RepGranted},
		{name: "rejected", host: "127.0.0.1", code: RepRejected, wantCode: RepRejected},
		{name: "identd", host: "127.0.0.1", code: RepNoIdentd, wantCode: RepNoIdentd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			got := make(chan *Request, 1)
			go func() {
				req, err := ReadRequest(serverConn)
				if err != nil {
					got <- nil
					return
				}
				got <- req
				_ = WriteReply(serverConn, tt.code)
			}()

			err := Connect(clientConn, tt.host, 25565, "user")
			req := <-got
			if req == nil {
				t.Fatal("server failed to read request")
			}
			if req.Address() != net.JoinHostPort(tt.host, "25565") || req.UserID != "user" {
				t.Fatalf("server saw %+v", req)
			}

			if tt.wantCode == 0 {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			var re *ReplyError
			if !errors.As(err, &re) || re.Code != tt.wantCode {
				t.Fatalf("got %v want code 0x%02x", err, tt.wantCode)
			}
		})
	}
}

func TestConnectMalformedReply(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		_, _ = ReadRequest(serverConn)
		_, _ = serverConn.Write([]byte{0x05, 0x00, 0, 0, 0, 0, 0, 0})
	}()

	if err := Connect(clientConn, "127.0.0.1", 80, ""); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
