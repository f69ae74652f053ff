package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Parlance ASCII banner.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Indigo to rose, one shade per line.
	lines := []struct{ text, color string }{
		{"  ____            _                      ", "#818cf8"},
		{" |  _ \\ __ _ _ __| | __ _ _ __   ___ ___ ", "#a78bfa"},
		{" | |_) / _` | '__| |/ _` | '_ \\ / __/ _ \\", "#c084fc"},
		{" |  __/ (_| | |  | | (_| | | | | (_|  __/", "#e879f9"},
		{" |_|   \\__,_|_|  |_|\\__,_|_| |_|\\___\\___|", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Label styles a speaker tag such as "system:" for the given writer.
// Writers that are not color terminals get the plain text.
func Label(w io.Writer, speaker string) string {
	out := termenv.NewOutput(w)
	color := "#818cf8"
	if speaker == "user" {
		color = "#f472b6"
	}
	return out.String(speaker + ":").Foreground(out.Color(color)).Bold().String()
}
