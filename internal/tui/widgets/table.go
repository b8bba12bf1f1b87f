package widgets

import (
	"fmt"
	"strings"
)

// Table renders pre-formatted cells as an aligned grid. The cursor row is
// marked with an arrow, marked rows with a bullet.
type Table struct {
	Headers []string
	Rows    [][]string
	Cursor  int // -1 for none
	Marks   []bool
	Footer  string
}

func (t Table) Render() string {
	if len(t.Headers) == 0 {
		return "No data"
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	var b strings.Builder
	b.WriteString("    ")
	for i, h := range t.Headers {
		b.WriteString(fmt.Sprintf("%-*s  ", widths[i], h))
	}
	b.WriteString("\n")

	if len(t.Rows) == 0 {
		b.WriteString("    (no rows)\n")
	}
	for r, row := range t.Rows {
		cursor := " "
		if r == t.Cursor {
			cursor = "▶"
		}
		mark := " "
		if r < len(t.Marks) && t.Marks[r] {
			mark = "•"
		}
		b.WriteString(cursor + " " + mark + " ")
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			b.WriteString(fmt.Sprintf("%-*s  ", widths[i], cell))
		}
		b.WriteString("\n")
	}

	if t.Footer != "" {
		b.WriteString(t.Footer + "\n")
	}
	return b.String()
}
