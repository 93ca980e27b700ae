package pipeline

import (
	"fmt"
	"time"

	"github.com/die-net/tunnelcheck/internal/dialer"
	"github.com/die-net/tunnelcheck/internal/probe"
)

// Status is an item's state within a batch.
type Status string

// Items have no status until a worker settles them.
const (
	Success Status = "success"
	Failure Status = "failure"
	// Skipped items were never claimed because the batch was cancelled.
	Skipped Status = "skipped"
)

// Item is one candidate in a batch.
type Item struct {
	// Index is the item's position in the submitted list.
	Index int
	// SourceLine is the submitted text, byte for byte.
	SourceLine string
	Proxy      dialer.Descriptor
	// ParseErr is set when SourceLine could not be parsed. Such items fail
	// with BadRequest without touching the network.
	ParseErr error
}

// ParseItems turns proxy list lines into items, using kind for lines that
// carry no scheme. Malformed lines become items with ParseErr set.
func ParseItems(lines []string, kind dialer.Kind) []Item {
	items := make([]Item, len(lines))
	for i, line := range lines {
		items[i] = Item{Index: i, SourceLine: line}
		items[i].Proxy, items[i].ParseErr = dialer.ParseDescriptor(line, kind)
	}
	return items
}

// Options tune a batch.
type Options struct {
	// Concurrency is the number of attempts in flight at once.
	Concurrency int
	// Timeout bounds each item: negotiation, AUTO fallbacks and probe.
	Timeout time.Duration
	// Probe, if set, runs on every established tunnel.
	Probe probe.Probe
}

const (
	DefaultKind        = dialer.KindAuto
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 20
)

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Submission is a batch request as it arrives over the wire.
type Submission struct {
	Kind            string   `json:"kind"`
	Items           []string `json:"items"`
	DestinationHost string   `json:"destinationHost"`
	DestinationPort int      `json:"destinationPort"`
	TimeoutMs       int      `json:"timeoutMs"`
	Concurrency     int      `json:"concurrency"`
	Probe           string   `json:"probe,omitempty"`
}

// Prepare validates s and fills in defaults: kind auto, a 5s timeout and
// concurrency 20. Errors are BadRequest failures.
func (s Submission) Prepare() ([]Item, dialer.Destination, Options, error) {
	kind := DefaultKind
	if s.Kind != "" {
		k, err := dialer.ParseKind(s.Kind)
		if err != nil {
			return nil, dialer.Destination{}, Options{}, err
		}
		kind = k
	}

	dst := dialer.Destination{Host: s.DestinationHost, Port: s.DestinationPort}
	if err := dst.Validate(); err != nil {
		return nil, dialer.Destination{}, Options{}, err
	}
	if len(s.Items) == 0 {
		return nil, dialer.Destination{}, Options{}, errNoItems
	}

	opts := Options{
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
	}
	if s.Concurrency != 0 {
		opts.Concurrency = max(s.Concurrency, 1)
	}
	if s.TimeoutMs > 0 {
		opts.Timeout = time.Duration(s.TimeoutMs) * time.Millisecond
	}

	pr, err := probe.Parse(s.Probe)
	if err != nil {
		return nil, dialer.Destination{}, Options{}, &dialer.Failure{Kind: dialer.BadRequest, Detail: err.Error(), Err: err}
	}
	opts.Probe = pr

	return ParseItems(s.Items, kind), dst, opts, nil
}

var errNoItems = &dialer.Failure{Kind: dialer.BadRequest, Detail: "no items submitted"}

func (i Item) String() string {
	return fmt.Sprintf("#%d %s", i.Index, i.SourceLine)
}
