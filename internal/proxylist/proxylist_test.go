package proxylist

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "1.2.3.4:1080", want: []string{"1.2.3.4:1080"}},
		{name: "no trailing newline", in: "a:1\nb:2", want: []string{"a:1", "b:2"}},
		{name: "crlf", in: "a:1\r\nb:2\r\n", want: []string{"a:1", "b:2"}},
		{name: "blank and comments", in: "\n# header\na:1\n   \n  # indented comment\nb:2\n", want: []string{"a:1", "b:2"}},
		{name: "kept verbatim", in: "  a:1:user:pa ss  \n", want: []string{"  a:1:user:pa ss  "}},
		{name: "scheme lines", in: "socks5://a:1\nssh://u:p@b:22\n", want: []string{"socks5://a:1", "ssh://u:p@b:22"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Read(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Read = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadLineTooLong(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader(strings.Repeat("x", maxLine+1)))
	if err == nil {
		t.Fatal("expected error for oversized line")
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(path, []byte("# list\n10.0.0.1:3128\n10.0.0.2:3128:u:p\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []string{"10.0.0.1:3128", "10.0.0.2:3128:u:p"}
	if !slices.Equal(got, want) {
		t.Fatalf("ReadFile = %q, want %q", got, want)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
