package pipeline

import (
	"encoding/json"
	"time"

	"github.com/die-net/tunnelcheck/internal/dialer"
)

// Event is the terminal result of one item.
type Event struct {
	BatchID    string           `json:"batchId"`
	Index      int              `json:"index"`
	SourceLine string           `json:"sourceLine"`
	OK         bool             `json:"ok"`
	Status     Status           `json:"status"`
	Kind       dialer.Kind      `json:"kind,omitempty"`
	ErrorKind  dialer.ErrorKind `json:"errorKind,omitempty"`
	// ErrorDetail explains a failure.
	ErrorDetail string `json:"errorDetail,omitempty"`
	// ProbeDetail describes what the liveness probe found.
	ProbeDetail string `json:"probeDetail,omitempty"`
	ElapsedMs   int64  `json:"elapsedMs"`
}

// Summary is the final accounting of a batch.
//
// Total == Succeeded + Failed + Skipped and Attempted == Succeeded + Failed.
type Summary struct {
	BatchID   string
	Total     int
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled bool
	// Good holds the successful items in the order they completed.
	Good     []Item
	Duration time.Duration
}

// GoodSourceLines returns the submitted text of each successful item, in
// completion order.
func (s Summary) GoodSourceLines() []string {
	lines := make([]string, len(s.Good))
	for i, it := range s.Good {
		lines[i] = it.SourceLine
	}
	return lines
}

type summaryJSON struct {
	BatchID         string   `json:"batchId"`
	Total           int      `json:"total"`
	TotalAttempted  int      `json:"totalAttempted"`
	Succeeded       int      `json:"succeeded"`
	Failed          int      `json:"failed"`
	Skipped         int      `json:"skipped"`
	Cancelled       bool     `json:"cancelled"`
	GoodSourceLines []string `json:"goodSourceLines"`
	DurationMs      int64    `json:"durationMs"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		BatchID:         s.BatchID,
		Total:           s.Total,
		TotalAttempted:  s.Attempted,
		Succeeded:       s.Succeeded,
		Failed:          s.Failed,
		Skipped:         s.Skipped,
		Cancelled:       s.Cancelled,
		GoodSourceLines: s.GoodSourceLines(),
		DurationMs:      s.Duration.Milliseconds(),
	})
}

// Observer receives a batch's results. The pipeline never calls it
// concurrently, and OnDone is always the last call.
type Observer interface {
	OnResult(Event)
	OnDone(Summary)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Result func(Event)
	Done   func(Summary)
}

func (o ObserverFuncs) OnResult(ev Event) {
	if o.Result != nil {
		o.Result(ev)
	}
}

func (o ObserverFuncs) OnDone(s Summary) {
	if o.Done != nil {
		o.Done(s)
	}
}

// Observers fans results out to several observers in order.
type Observers []Observer

func (obs Observers) OnResult(ev Event) {
	for _, o := range obs {
		o.OnResult(ev)
	}
}

func (obs Observers) OnDone(s Summary) {
	for _, o := range obs {
		o.OnDone(s)
	}
}
