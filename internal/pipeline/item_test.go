package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/die-net/tunnelcheck/internal/dialer"
	"github.com/die-net/tunnelcheck/internal/probe"
)

func TestSubmissionPrepare(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		items, dst, opts, err := Submission{
			Items:           []string{"1.2.3.4:1080", "socks4://5.6.7.8:4145:bob"},
			DestinationHost: "mc.example",
			DestinationPort: 25565,
		}.Prepare()
		if err != nil {
			t.Fatal(err)
		}
		if dst != (dialer.Destination{Host: "mc.example", Port: 25565}) {
			t.Fatalf("dst %+v", dst)
		}
		if opts.Concurrency != DefaultConcurrency || opts.Timeout != DefaultTimeout || opts.Probe != nil {
			t.Fatalf("opts %+v", opts)
		}
		if items[0].Proxy.Kind != dialer.KindAuto || items[1].Proxy.Kind != dialer.KindSOCKS4 {
			t.Fatalf("kinds %q %q", items[0].Proxy.Kind, items[1].Proxy.Kind)
		}
		if items[1].Index != 1 || items[1].SourceLine != "socks4://5.6.7.8:4145:bob" {
			t.Fatalf("item %+v", items[1])
		}
	})

	t.Run("explicit", func(t *testing.T) {
		t.Parallel()

		items, _, opts, err := Submission{
			Kind:            "HTTP",
			Items:           []string{"1.2.3.4:3128:u:p"},
			DestinationHost: "example.com",
			DestinationPort: 80,
			TimeoutMs:       1500,
			Concurrency:     -3,
			Probe:           "http",
		}.Prepare()
		if err != nil {
			t.Fatal(err)
		}
		if opts.Concurrency != 1 || opts.Timeout != 1500*time.Millisecond {
			t.Fatalf("opts %+v", opts)
		}
		if _, ok := opts.Probe.(probe.HTTP); !ok {
			t.Fatalf("probe %#v", opts.Probe)
		}
		if items[0].Proxy.Kind != dialer.KindHTTP || !items[0].Proxy.HasAuth() {
			t.Fatalf("item %+v", items[0])
		}
	})

	t.Run("malformed line is kept", func(t *testing.T) {
		t.Parallel()

		items, _, _, err := Submission{
			Items:           []string{"garbage"},
			DestinationHost: "mc.example",
			DestinationPort: 25565,
		}.Prepare()
		if err != nil {
			t.Fatal(err)
		}
		if !dialer.IsBadRequest(items[0].ParseErr) {
			t.Fatalf("ParseErr %v", items[0].ParseErr)
		}
	})

	rejects := []struct {
		name string
		sub  Submission
	}{
		{name: "no items", sub: Submission{DestinationHost: "h", DestinationPort: 1}},
		{name: "no host", sub: Submission{Items: []string{"1.2.3.4:1"}, DestinationPort: 1}},
		{name: "bad port", sub: Submission{Items: []string{"1.2.3.4:1"}, DestinationHost: "h", DestinationPort: 70000}},
		{name: "bad kind", sub: Submission{Kind: "gopher", Items: []string{"1.2.3.4:1"}, DestinationHost: "h", DestinationPort: 1}},
		{name: "bad probe", sub: Submission{Probe: "smtp", Items: []string{"1.2.3.4:1"}, DestinationHost: "h", DestinationPort: 1}},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, _, _, err := tt.sub.Prepare(); !dialer.IsBadRequest(err) {
				t.Fatalf("expected BadRequest, got %v", err)
			}
		})
	}
}

func TestSubmissionJSON(t *testing.T) {
	t.Parallel()

	var s Submission
	body := `{"kind":"socks5","items":["1.2.3.4:1080"],"destinationHost":"mc.example","destinationPort":25565,"timeoutMs":3000,"concurrency":50}`
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatal(err)
	}
	want := Submission{Kind: "socks5", Items: []string{"1.2.3.4:1080"}, DestinationHost: "mc.example", DestinationPort: 25565, TimeoutMs: 3000, Concurrency: 50}
	if !slices.Equal(s.Items, want.Items) || s.Kind != want.Kind || s.DestinationHost != want.DestinationHost ||
		s.DestinationPort != want.DestinationPort || s.TimeoutMs != want.TimeoutMs || s.Concurrency != want.Concurrency {
		t.Fatalf("got %+v", s)
	}
}

func TestSummaryJSON(t *testing.T) {
	t.Parallel()

	s := Summary{
		BatchID:   "b",
		Total:     3,
		Attempted: 2,
		Succeeded: 1,
		Failed:    1,
		Skipped:   1,
		Cancelled: true,
		Good:      []Item{{Index: 2, SourceLine: "1.2.3.4:1080"}},
		Duration:  1500 * time.Millisecond,
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"batchId":"b","total":3,"totalAttempted":2,"succeeded":1,"failed":1,"skipped":1,"cancelled":true,"goodSourceLines":["1.2.3.4:1080"],"durationMs":1500}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}
}

type probeFunc func(ctx context.Context, c net.Conn, dst dialer.Destination) (string, error)

func (f probeFunc) Probe(ctx context.Context, c net.Conn, dst dialer.Destination) (string, error) {
	return f(ctx, c, dst)
}

func TestProbeOutcomes(t *testing.T) {
	t.Parallel()

	errDown := errors.New("service down")

	tests := []struct {
		name       string
		probe      probeFunc
		wantOK     bool
		wantKind   dialer.ErrorKind
		wantDetail string
	}{
		{
			name:       "alive",
			probe:      func(context.Context, net.Conn, dialer.Destination) (string, error) { return "1.21", nil },
			wantOK:     true,
			wantDetail: "1.21",
		},
		{
			name:     "dead",
			probe:    func(context.Context, net.Conn, dialer.Destination) (string, error) { return "", errDown },
			wantKind: dialer.ProbeFailed,
		},
		{
			// Blocks on a read nobody answers and ignores ctx.
			name: "hangs",
			probe: func(_ context.Context, c net.Conn, _ dialer.Destination) (string, error) {
				_, err := c.Read(make([]byte, 1))
				return "", err
			},
			wantKind: dialer.Timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ft := &fakeTunneler{}
			rec := &recorder{}
			start := time.Now()
			_, err := New(ft).Run(context.Background(), items(t, line(1, "good", "")), testDst,
				Options{Timeout: 200 * time.Millisecond, Probe: tt.probe}, rec)
			if err != nil {
				t.Fatal(err)
			}
			if time.Since(start) > time.Second {
				t.Fatal("probe outlived its timeout")
			}

			ev := rec.events[0]
			if ev.OK != tt.wantOK || ev.ErrorKind != tt.wantKind || ev.ProbeDetail != tt.wantDetail {
				t.Fatalf("event %+v", ev)
			}
			ft.allClosed(t)
		})
	}
}
