package pipeline

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/die-net/tunnelcheck/internal/dialer"
	"github.com/die-net/tunnelcheck/internal/race"
)

// batch is the state of one run. Everything below mu is guarded by it; the
// negotiation itself runs unlocked. emitMu serializes observer calls and is
// always taken before mu, so an observer may call Cancel.
type batch struct {
	id       string
	tunneler Tunneler
	logger   *slog.Logger
	items    []Item
	dst      dialer.Destination
	opts     Options
	obs      Observer

	emitMu sync.Mutex

	mu        sync.Mutex
	cancelled bool
	next      int
	succeeded int
	failed    int
	good      []Item
}

func (b *batch) run(ctx context.Context) Summary {
	start := time.Now()
	workers := min(b.opts.Concurrency, len(b.items))
	b.logger.Info("batch started",
		"items", len(b.items), "destination", b.dst.Addr(),
		"workers", workers, "timeout", b.opts.Timeout)

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			b.work(ctx)
			return nil
		})
	}
	_ = g.Wait()

	// Workers are gone; only Cancel can still touch the state.
	b.mu.Lock()
	next, cancelled := b.next, b.cancelled
	b.mu.Unlock()

	for _, it := range b.items[next:] {
		b.obs.OnResult(Event{
			BatchID:    b.id,
			Index:      it.Index,
			SourceLine: it.SourceLine,
			Status:     Skipped,
		})
	}

	s := Summary{
		BatchID:   b.id,
		Total:     len(b.items),
		Attempted: b.succeeded + b.failed,
		Succeeded: b.succeeded,
		Failed:    b.failed,
		Skipped:   len(b.items) - next,
		Cancelled: cancelled || ctx.Err() != nil,
		Good:      b.good,
		Duration:  time.Since(start),
	}
	b.logger.Info("batch finished",
		"succeeded", s.Succeeded, "failed", s.Failed, "skipped", s.Skipped,
		"cancelled", s.Cancelled, "duration", s.Duration)
	return s
}

// work claims and checks items until none are left or the batch is
// cancelled. The cancel flag is only looked at between items.
func (b *batch) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		it, ok := b.claim()
		if !ok {
			return
		}
		b.record(it, b.check(ctx, it))
	}
}

// claim hands out the next item. Once cancel has returned, it hands out
// nothing.
func (b *batch) claim() (Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelled || b.next >= len(b.items) {
		return Item{}, false
	}
	it := b.items[b.next]
	b.next++
	return it, true
}

// cancel sets the cancel flag and reports whether this call set it.
func (b *batch) cancel() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelled {
		return false
	}
	b.cancelled = true
	return true
}

func (b *batch) record(it Item, ev Event) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if ev.OK {
		b.succeeded++
		b.good = append(b.good, it)
	} else {
		b.failed++
	}
	b.mu.Unlock()

	b.obs.OnResult(ev)
}

// check negotiates a tunnel for it, probes it if configured and closes it.
// One Timeout covers all of it: every AUTO attempt and the probe.
func (b *batch) check(ctx context.Context, it Item) Event {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	ev := Event{
		BatchID:    b.id,
		Index:      it.Index,
		SourceLine: it.SourceLine,
		Kind:       it.Proxy.Kind,
	}

	fail := func(f *dialer.Failure) Event {
		ev.Status = Failure
		ev.ErrorKind = f.Kind
		ev.ErrorDetail = f.Detail
		ev.ElapsedMs = time.Since(start).Milliseconds()
		b.logger.Debug("candidate failed", "item", it.Index, "proxy", it.SourceLine, "error", f)
		return ev
	}

	if it.ParseErr != nil {
		return fail(dialer.Classify(it.ParseErr))
	}

	res := b.negotiate(ctx, it.Proxy)
	ev.Kind = res.Kind
	if res.Err != nil {
		return fail(res.Err)
	}

	if b.opts.Probe != nil {
		detail, err := b.probe(ctx, res.Conn)
		_ = res.Conn.Close()
		if err != nil {
			return fail(err)
		}
		ev.ProbeDetail = detail
	} else {
		_ = res.Conn.Close()
	}

	ev.OK = true
	ev.Status = Success
	ev.ElapsedMs = time.Since(start).Milliseconds()
	b.logger.Debug("candidate ok", "item", it.Index, "proxy", it.SourceLine, "kind", res.Kind, "elapsed", time.Since(start))
	return ev
}

// negotiate resolves KindAuto by trying each concrete kind in turn within
// what is left of ctx's deadline.
func (b *batch) negotiate(ctx context.Context, p dialer.Descriptor) dialer.Result {
	if p.Kind != dialer.KindAuto {
		return b.attempt(ctx, p)
	}

	var res dialer.Result
	for _, k := range dialer.AutoOrder {
		q := p
		q.Kind = k
		res = b.attempt(ctx, q)
		if res.OK() {
			return res
		}
		// Nothing listening, or no time left: other kinds won't help.
		if res.Err.Kind == dialer.ConnectRefused || res.Err.Kind == dialer.Canceled || ctx.Err() != nil {
			break
		}
	}
	res.Kind = dialer.KindAuto
	return res
}

// attempt runs one negotiation bounded by the time remaining on ctx.
func (b *batch) attempt(ctx context.Context, p dialer.Descriptor) dialer.Result {
	timeout := b.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 || ctx.Err() != nil {
		err := ctx.Err()
		if err == nil {
			err = context.DeadlineExceeded
		}
		return dialer.Result{Proxy: p, Kind: p.Kind, Err: dialer.Classify(err)}
	}
	return b.tunneler.Negotiate(ctx, p, b.dst, timeout)
}

// probe runs the liveness probe in a first-wins race against ctx, which
// carries the rest of the item's deadline. The caller closes c, which also
// stops a probe that lost.
func (b *batch) probe(ctx context.Context, c net.Conn) (string, *dialer.Failure) {
	detail, err := race.Run(ctx, func(ctx context.Context) (string, error) {
		return b.opts.Probe.Probe(ctx, c, b.dst)
	}, nil)
	if err == nil {
		return detail, nil
	}

	f := dialer.Classify(err)
	if f.Kind != dialer.Timeout && f.Kind != dialer.Canceled {
		f = &dialer.Failure{Kind: dialer.ProbeFailed, Detail: err.Error(), Err: err}
	}
	return "", f
}
