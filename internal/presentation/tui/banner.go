package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner of the CLI.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	// Teal to blue, top to bottom
	lines := []struct {
		text  string
		color string
	}{
		{"  _                   _            ", "#2dd4bf"},
		{" (_)_ __   __ _ _   _(_)_ __ _   _ ", "#22d3ee"},
		{" | | '_ \\ / _` | | | | | '__| | | |", "#38bdf8"},
		{" | | | | | (_| | |_| | | |  | |_| |", "#60a5fa"},
		{" |_|_| |_|\\__, |\\__,_|_|_|   \\__, |", "#818cf8"},
		{"             |_|             |___/ ", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, out.String("  research pipeline v"+v).Faint())
	}
	fmt.Fprintln(w)
}
