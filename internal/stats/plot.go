package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var (
	blocks = []rune("▁▂▃▄▅▆▇█")
	colors = []string{"\x1b[36m", "\x1b[35m", "\x1b[33m", "\x1b[32m"}
)

// PlotSeries renders each series as a column chart, one under another.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return PlotSeriesWithColor(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders a plot with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	var filtered []Series
	for _, s := range series {
		if len(s.Values) > 0 {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)
	useColor := shouldUseColor(w, forceColor)

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for i, s := range filtered {
		color := ""
		if useColor {
			color = colors[i%len(colors)]
		}
		if err := plotColumns(w, s, width, height, color); err != nil {
			return err
		}
	}
	return nil
}

func plotColumns(w io.Writer, s Series, width, height int, color string) error {
	values := resample(s.Values, min(width, len(s.Values)))
	lo, hi := minMax(values)
	if lo > 0 {
		lo = 0
	}
	span := hi - lo
	if span < 1e-9 {
		span = 1
	}
	labelWidth := max(runewidth.StringWidth(formatAxis(hi)), runewidth.StringWidth(formatAxis(lo)))

	if _, err := fmt.Fprintf(w, "%s: min=%.1f max=%.1f last=%.1f\n", s.Name, lo, hi, values[len(values)-1]); err != nil {
		return err
	}
	steps := len(blocks)
	for row := height - 1; row >= 0; row-- {
		label := ""
		switch row {
		case height - 1:
			label = formatAxis(hi)
		case 0:
			label = formatAxis(lo)
		}
		var b strings.Builder
		b.WriteString(runewidth.FillLeft(label, labelWidth))
		b.WriteString(axisSeparator)
		b.WriteString(color)
		for _, v := range values {
			level := (v - lo) / span * float64(height*steps)
			fill := int(math.Round(level)) - row*steps
			switch {
			case fill >= steps:
				b.WriteRune(blocks[steps-1])
			case fill > 0:
				b.WriteRune(blocks[fill-1])
			default:
				b.WriteByte(' ')
			}
		}
		if color != "" {
			b.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func formatAxis(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

// resample shrinks values to width buckets by averaging.
func resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := max((i+1)*len(values)/width, start+1)
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := 4 + runewidth.StringWidth(axisSeparator)
	return max(totalWidth-axisWidth, minPlotWidth)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
