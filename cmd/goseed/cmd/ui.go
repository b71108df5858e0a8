package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// printHeader prints a framed title.
func printHeader(w io.Writer, format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	rule := strings.Repeat("=", runewidth.StringWidth(title)+4)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  %s\n", color.Bold.Sprint(title))
	fmt.Fprintln(w, rule)
}

// printSection prints a section header
func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "[%s]\n", color.Cyan.Sprint(title))
	fmt.Fprintln(w, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// writeTable prints rows under headers with columns aligned on display
// width, so values with wide characters stay in line.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(cell) > widths[i] {
				widths[i] = runewidth.StringWidth(cell)
			}
		}
	}

	line := func(cells []string, style func(a ...interface{}) string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			padded := cell
			if i < len(cells)-1 {
				padded = runewidth.FillRight(cell, widths[i])
			}
			parts[i] = style(padded)
		}
		fmt.Fprintln(w, "  "+strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers, color.Bold.Sprint)
	rules := make([]string, len(headers))
	for i := range headers {
		rules[i] = strings.Repeat("-", widths[i])
	}
	line(rules, fmt.Sprint)
	for _, row := range rows {
		line(row, fmt.Sprint)
	}
}

// truncate shortens s to at most max display columns.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}

func statusMark(ok bool) string {
	if ok {
		return color.Green.Sprint("✅")
	}
	return color.Red.Sprint("❌")
}
