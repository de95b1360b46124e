// Package stats summarizes lock-screen history and renders it as text.
package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// column describes one plain-text table column. Max caps the cell width,
// longer cells are cut with an ellipsis. Zero means unbounded.
type column struct {
	header string
	right  bool
	max    int
}

var (
	eventColumns = []column{
		{header: "Time"},
		{header: "Event"},
		{header: "Status"},
		{header: "User", max: 16},
		{header: "Left", right: true},
		{header: "Vector"},
	}
	outcomeColumns = []column{
		{header: "Event"},
		{header: "Status"},
		{header: "Count", right: true},
	}
)

// writeTable prints a titled table followed by a blank line.
func writeTable(w io.Writer, title string, cols []column, rows [][]string) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for _, line := range layoutTable(cols, rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func layoutTable(cols []column, rows [][]string) []string {
	if len(cols) == 0 {
		return nil
	}
	cells := make([][]string, 0, len(rows)+1)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.header
	}
	cells = append(cells, header)
	for _, row := range rows {
		fitted := make([]string, len(cols))
		for i, c := range cols {
			if i < len(row) {
				fitted[i] = clip(row[i], c.max)
			}
		}
		cells = append(cells, fitted)
	}

	widths := make([]int, len(cols))
	for _, row := range cells {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	lines := make([]string, len(cells))
	for n, row := range cells {
		parts := make([]string, len(cols))
		for i, cell := range row {
			parts[i] = pad(cell, widths[i], cols[i].right)
		}
		lines[n] = strings.TrimRight(strings.Join(parts, " "), " ")
	}
	return lines
}

func clip(value string, limit int) string {
	if limit <= 0 || runewidth.StringWidth(value) <= limit {
		return value
	}
	return runewidth.Truncate(value, limit, "…")
}

func pad(value string, width int, right bool) string {
	gap := width - runewidth.StringWidth(value)
	if gap <= 0 {
		return value
	}
	if right {
		return strings.Repeat(" ", gap) + value
	}
	return value + strings.Repeat(" ", gap)
}
