package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbose   bool
		wantDebug bool
	}{
		{verbose: false, wantDebug: false},
		{verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(&buf, tt.verbose)
		l.Debug("hidden unless verbose", "k", "v")
		l.Info("always")

		if got := strings.Contains(buf.String(), "hidden unless verbose"); got != tt.wantDebug {
			t.Errorf("verbose=%v: debug logged=%v", tt.verbose, got)
		}
		if !strings.Contains(buf.String(), "msg=always") {
			t.Errorf("verbose=%v: info missing from %q", tt.verbose, buf.String())
		}
	}
}
