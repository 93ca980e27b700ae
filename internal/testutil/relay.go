package testutil

import (
	"context"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// relay pipes client and upstream into each other. The first side to finish,
// or ctx ending, closes both.
func relay(ctx context.Context, client, upstream net.Conn) {
	var once sync.Once
	shut := func() {
		once.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}
	stop := context.AfterFunc(ctx, shut)
	defer stop()

	var g errgroup.Group
	for _, p := range [][2]net.Conn{{upstream, client}, {client, upstream}} {
		g.Go(func() error {
			defer shut()
			_, err := io.Copy(p[0], p[1])
			return err
		})
	}
	_ = g.Wait()
}
