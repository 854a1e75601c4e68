package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  _____     _      ", "#fbbf24"},
	{" |_   _|_ _| | ___ ", "#f59e0b"},
	{"   | |/ _` | |/ _ \\", "#f97316"},
	{"   | | (_| | |  __/", "#ef4444"},
	{"   |_|\\__,_|_|\\___|", "#dc2626"},
}

// PrintBanner writes the Tale banner to w, colored when w is a capable terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
