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
	{"   __ _                                       _     ", "#818cf8"},
	{"  / _| | _____      ____ _ _ __ __ _ _ __ | |__  ", "#a78bfa"},
	{" | |_| |/ _ \\ \\ /\\ / / _` | '__/ _` | '_ \\| '_ \\ ", "#c084fc"},
	{" |  _| | (_) \\ V  V / (_| | | | (_| | |_) | | | |", "#e879f9"},
	{" |_| |_|\\___/ \\_/\\_/ \\__, |_|  \\__,_| .__/|_| |_|", "#f472b6"},
	{"                     |___/          |_|          ", "#fb7185"},
}

// PrintBanner writes the flowgraph banner to w. Colors are dropped when w is
// not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(p.Color(line.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}
