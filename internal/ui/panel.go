package ui

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var ansiRegexp = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string { return ansiRegexp.ReplaceAllString(s, "") }

func visibleWidth(s string) int { return runewidth.StringWidth(stripANSI(s)) }

// Panel draws a framed box around lines using the current theme.
func Panel(w io.Writer, lines []string) {
	t := current
	maxw := 0
	for _, ln := range lines {
		if vw := visibleWidth(ln); vw > maxw {
			maxw = vw
		}
	}
	fmt.Fprintln(w, t.CornerTL+strings.Repeat(t.H, maxw+2)+t.CornerTR)
	for _, ln := range lines {
		pad := strings.Repeat(" ", maxw-visibleWidth(ln))
		fmt.Fprintln(w, t.V+" "+ln+pad+" "+t.V)
	}
	fmt.Fprintln(w, t.CornerBL+strings.Repeat(t.H, maxw+2)+t.CornerBR)
}

// Numbered renders "  1. name" rows, or a muted placeholder when empty.
func Numbered(names []string, empty string) []string {
	if len(names) == 0 {
		return []string{C(current.Muted, empty)}
	}
	out := make([]string, len(names))
	for i, n := range names {
		n = runewidth.Truncate(n, 60, "...")
		out[i] = fmt.Sprintf("%s %s", C(current.Muted, fmt.Sprintf("%2d.", i+1)), n)
	}
	return out
}
