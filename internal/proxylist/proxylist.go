// Package proxylist reads candidate proxy lists.
//
// One candidate per line. Blank lines and lines starting with '#' are
// skipped. Kept lines are returned exactly as written, apart from the line
// terminator, so they can be echoed back in a good list unchanged.
package proxylist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLine bounds a single line. Candidate lines are short; anything longer is
// almost certainly not a proxy list.
const maxLine = 64 << 10

// Read returns the candidate lines of r.
func Read(r io.Reader) ([]string, error) {
	var lines []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan proxy list: %w", err)
	}
	return lines, nil
}

// ReadFile reads the list at path. "-" reads standard input.
func ReadFile(path string) ([]string, error) {
	if path == "-" {
		return Read(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()

	return Read(f)
}
