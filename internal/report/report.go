// Package report renders batch results for people and for other programs.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/die-net/tunnelcheck/internal/dialer"
	"github.com/die-net/tunnelcheck/internal/pipeline"
)

// Printer is a pipeline.Observer that writes one line per result and a
// summary at the end.
type Printer struct {
	w io.Writer
	// Failures controls whether failed and skipped items are printed.
	Failures bool

	mu     sync.Mutex
	counts map[dialer.ErrorKind]int
}

func NewPrinter(w io.Writer, failures bool) *Printer {
	return &Printer{w: w, Failures: failures, counts: make(map[dialer.ErrorKind]int)}
}

func (p *Printer) OnResult(ev pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Status {
	case pipeline.Success:
		fmt.Fprintf(p.w, "ok    %-6s %6s  %s%s\n", ev.Kind, elapsed(ev.ElapsedMs), ev.SourceLine, suffix(ev.ProbeDetail))
	case pipeline.Skipped:
		if p.Failures {
			fmt.Fprintf(p.w, "skip  %-6s %6s  %s\n", "-", "-", ev.SourceLine)
		}
	default:
		p.counts[ev.ErrorKind]++
		if p.Failures {
			fmt.Fprintf(p.w, "fail  %-6s %6s  %s: %s\n", dashIfEmpty(string(ev.Kind)), elapsed(ev.ElapsedMs), ev.SourceLine, ev.ErrorDetail)
		}
	}
}

func (p *Printer) OnDone(s pipeline.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	PrintSummary(p.w, s, p.counts)
}

// PrintSummary writes the batch totals followed by a table of failure
// counts per error kind, most frequent first.
func PrintSummary(w io.Writer, s pipeline.Summary, failures map[dialer.ErrorKind]int) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Batch %s", s.BatchID)
	if s.Cancelled {
		fmt.Fprint(w, " (cancelled)")
	}
	fmt.Fprintln(w, ":")
	fmt.Fprintf(w, "  Total:      %d\n", s.Total)
	fmt.Fprintf(w, "  Attempted:  %d\n", s.Attempted)
	fmt.Fprintf(w, "  Succeeded:  %d\n", s.Succeeded)
	fmt.Fprintf(w, "  Failed:     %d\n", s.Failed)
	fmt.Fprintf(w, "  Skipped:    %d\n", s.Skipped)
	fmt.Fprintf(w, "  Duration:   %s\n", s.Duration.Round(time.Millisecond))

	if len(failures) == 0 {
		return
	}

	kinds := slices.SortedFunc(maps.Keys(failures), func(a, b dialer.ErrorKind) int {
		if c := cmp.Compare(failures[b], failures[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ERROR\tCOUNT")
	for _, k := range kinds {
		fmt.Fprintf(tw, "  %s\t%d\n", k, failures[k])
	}
	_ = tw.Flush()
}

// WriteGoodList writes the source line of every successful item, one per
// line, in completion order.
func WriteGoodList(w io.Writer, s pipeline.Summary) error {
	for _, line := range s.GoodSourceLines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write good list: %w", err)
		}
	}
	return nil
}

// WriteSummaryJSON writes s as indented JSON.
func WriteSummaryJSON(w io.Writer, s pipeline.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// WriteFile creates path and fills it with write. "-" means standard output.
func WriteFile(path string, s pipeline.Summary, write func(io.Writer, pipeline.Summary) error) error {
	if path == "-" {
		return write(os.Stdout, s)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func elapsed(ms int64) string {
	return fmt.Sprintf("%dms", ms)
}

func suffix(detail string) string {
	if detail == "" {
		return ""
	}
	return "  [" + detail + "]"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
