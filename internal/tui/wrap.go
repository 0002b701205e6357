package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type cell struct {
	r       rune
	width   int
	isSpace bool
}

// wrapText breaks text into lines no wider than width terminal cells.
// Lines break at the last space when there is one; wide scripts without
// spaces break at any rune.
func wrapText(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = append(out, wrapLine(para, width)...)
	}
	return out
}

func wrapLine(text string, width int) []string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return []string{text}
	}
	var lines []string
	line := make([]cell, 0, width)
	lineWidth := 0
	lastSpace := -1

	flush := func(upto int) {
		lines = append(lines, renderCells(line[:upto]))
	}
	for _, r := range text {
		c := cell{r: r, width: runewidth.RuneWidth(r), isSpace: r == ' '}
		if c.isSpace && lineWidth+c.width > width {
			flush(len(line))
			line = line[:0]
			lineWidth = 0
			lastSpace = -1
			continue
		}
		for lineWidth+c.width > width && len(line) > 0 {
			if lastSpace >= 0 {
				flush(lastSpace)
				line = append([]cell{}, line[lastSpace+1:]...)
			} else {
				flush(len(line))
				line = line[:0]
			}
			lineWidth = widthOf(line)
			lastSpace = lastSpaceIndex(line)
		}
		if c.isSpace && len(line) == 0 && len(lines) > 0 {
			continue
		}
		line = append(line, c)
		lineWidth += c.width
		if c.isSpace {
			lastSpace = len(line) - 1
		}
	}
	if len(line) > 0 {
		flush(len(line))
	}
	return lines
}

func renderCells(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteRune(c.r)
	}
	return strings.TrimRight(b.String(), " ")
}

func widthOf(cells []cell) int {
	total := 0
	for _, c := range cells {
		total += c.width
	}
	return total
}

func lastSpaceIndex(cells []cell) int {
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].isSpace {
			return i
		}
	}
	return -1
}
