package widgets

import (
	"fmt"
	"strings"
)

// ChartPoint is one labeled bar.
type ChartPoint struct {
	Label string
	Value float64
}

// Chart renders horizontal bars scaled to the largest absolute value, so
// gains and losses stay comparable at a glance.
type Chart struct {
	Title string
	Data  []ChartPoint
	Width int
}

func (c Chart) Render() string {
	width := c.Width
	if width <= 0 {
		width = 40
	}
	if len(c.Data) == 0 {
		return c.Title + "\n(no data)"
	}
	maxAbs := 0.0
	for _, p := range c.Data {
		v := p.Value
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	if maxAbs <= 0 {
		maxAbs = 1
	}

	lines := []string{c.Title}
	for _, p := range c.Data {
		abs := p.Value
		glyph := "#"
		if abs < 0 {
			abs = -abs
			glyph = "="
		}
		w := int(abs / maxAbs * float64(width))
		if w < 1 {
			w = 1
		}
		lines = append(lines, fmt.Sprintf("%-12s %s %+.2f", p.Label, strings.Repeat(glyph, w), p.Value))
	}
	return strings.Join(lines, "\n")
}
