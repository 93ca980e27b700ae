package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/die-net/tunnelcheck/internal/dialer"
)

// ErrBusy is returned when a batch is submitted while another is running.
var ErrBusy = errors.New("pipeline: a batch is already running")

// CancelStatus is the answer to a cancel request.
type CancelStatus string

const (
	NotRunning CancelStatus = "not-running"
	Stopping   CancelStatus = "stopping"
)

// Tunneler negotiates tunnels; *dialer.Negotiator implements it.
type Tunneler interface {
	Negotiate(ctx context.Context, p dialer.Descriptor, dst dialer.Destination, timeout time.Duration) dialer.Result
}

// Pipeline runs one batch at a time.
type Pipeline struct {
	tunneler Tunneler
	logger   *slog.Logger
	newID    func() string

	mu     sync.Mutex
	active *batch
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithBatchIDs replaces the batch ID generator (random UUIDs by default).
func WithBatchIDs(f func() string) Option {
	return func(p *Pipeline) { p.newID = f }
}

func New(tunneler Tunneler, opts ...Option) *Pipeline {
	p := &Pipeline{
		tunneler: tunneler,
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start validates and registers a batch, then runs it in the background.
// The returned channel yields the summary once, after obs.OnDone.
//
// Start fails synchronously with ErrBusy, or with a BadRequest failure for a
// bad destination or an empty item list.
func (p *Pipeline) Start(ctx context.Context, items []Item, dst dialer.Destination, opts Options, obs Observer) (string, <-chan Summary, error) {
	if err := dst.Validate(); err != nil {
		return "", nil, err
	}
	if len(items) == 0 {
		return "", nil, errNoItems
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	b := &batch{
		id:       p.newID(),
		tunneler: p.tunneler,
		logger:   p.logger,
		items:    items,
		dst:      dst,
		opts:     opts.withDefaults(),
		obs:      obs,
	}
	b.logger = b.logger.With("batch", b.id)

	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return "", nil, ErrBusy
	}
	p.active = b
	p.mu.Unlock()

	done := make(chan Summary, 1)
	go func() {
		s := b.run(ctx)

		// Free the slot first so OnDone may start the next batch.
		p.mu.Lock()
		p.active = nil
		p.mu.Unlock()

		b.obs.OnDone(s)
		done <- s
	}()

	return b.id, done, nil
}

// Run is Start followed by waiting for the summary.
func (p *Pipeline) Run(ctx context.Context, items []Item, dst dialer.Destination, opts Options, obs Observer) (Summary, error) {
	_, done, err := p.Start(ctx, items, dst, opts, obs)
	if err != nil {
		return Summary{}, err
	}
	return <-done, nil
}

// Cancel asks the running batch to stop claiming items. In-flight attempts
// finish on their own. Calling it again, or with nothing running, is
// harmless.
func (p *Pipeline) Cancel() CancelStatus {
	p.mu.Lock()
	b := p.active
	p.mu.Unlock()

	if b == nil {
		return NotRunning
	}
	if b.cancel() {
		b.logger.Info("batch cancelling")
	}
	return Stopping
}

// Running reports the ID of the running batch, if any.
func (p *Pipeline) Running() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return "", false
	}
	return p.active.id, true
}
