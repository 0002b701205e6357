// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/factopia/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Accuracy returns the correct share of answered questions in percent.
func Accuracy(correct, answered int) float64 {
	if answered <= 0 {
		return 0
	}
	return float64(correct) / float64(answered) * 100
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		n := i + 1
		if i >= window {
			sum -= values[i-window]
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := minMax(values)
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		b.WriteByte(sparkChars[clamp(idx, 0, last)])
	}
	return b.String()
}

// RenderSummary prints lifetime totals and run history figures.
func RenderSummary(w io.Writer, r Report) error {
	snap := r.Progress
	lines := []string{
		"Summary",
		fmt.Sprintf("Total score: %d", snap.TotalScore),
		fmt.Sprintf("Questions answered: %d", snap.Stats.TotalAnswered),
		fmt.Sprintf("Overall accuracy: %.1f%%", Accuracy(snap.Stats.TotalCorrect, snap.Stats.TotalAnswered)),
		fmt.Sprintf("Levels played: %d", len(snap.Levels)),
		fmt.Sprintf("Open mistakes: %d", len(snap.Mistakes)),
		fmt.Sprintf("Favorites: %d", len(snap.Favorites)),
	}
	if len(r.Runs) > 0 {
		best := 0
		var accSum float64
		for _, run := range r.Runs {
			if run.Score > best {
				best = run.Score
			}
			accSum += float64(run.Accuracy)
		}
		lines = append(lines,
			fmt.Sprintf("Runs: %d", len(r.Runs)),
			fmt.Sprintf("Best run: %d", best),
			fmt.Sprintf("Avg accuracy: %.1f%%", accSum/float64(len(r.Runs))),
		)
	}
	for _, line := range append(lines, "") {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints score and accuracy curves over runs.
func RenderCurves(w io.Writer, runs []model.RunRecord, window int) error {
	return RenderCurvesWithSize(w, runs, window, 0, defaultPlotHeight, false)
}

// RenderCurvesWithSize prints curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, runs []model.RunRecord, window, totalWidth, height int, useColor bool) error {
	if len(runs) == 0 {
		return nil
	}
	scores := make([]float64, len(runs))
	accs := make([]float64, len(runs))
	for i, run := range runs {
		scores[i] = float64(run.Score)
		accs[i] = float64(run.Accuracy)
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Learning Curves", []Series{
		{Name: "Score", Values: MovingAverage(scores, window)},
		{Name: "Accuracy", Values: MovingAverage(accs, window)},
	}, width, height, useColor)
}

// RenderLevelTable prints best results per level for the given categories.
func RenderLevelTable(w io.Writer, cats []model.Category, levels map[string]model.LevelProgress) error {
	rows := LevelRows(cats, levels)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No levels found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Levels"); err != nil {
		return err
	}
	return writeTable(w, []string{"Category", "Level", "Best", "Accuracy", "Status"}, rows, map[int]bool{2: true, 3: true})
}

// LevelRows builds display rows for every level of cats.
func LevelRows(cats []model.Category, levels map[string]model.LevelProgress) [][]string {
	var rows [][]string
	for _, cat := range cats {
		for i, lvl := range cat.Levels {
			p, ok := levels[cat.ID+"_"+lvl.ID]
			status := "locked"
			switch {
			case ok && p.Score > 0:
				status = "cleared"
			case ok && p.Unlocked, i == 0:
				status = "open"
			}
			best, acc := "-", "-"
			if ok && p.Score > 0 {
				best = fmt.Sprintf("%d", p.Score)
				acc = fmt.Sprintf("%d%%", p.Accuracy)
			}
			rows = append(rows, []string{cat.Name, lvl.Name, best, acc, status})
		}
	}
	return rows
}

// RenderMistakeTable prints open mistakes, newest first. prompt resolves a
// question prompt and may be nil.
func RenderMistakeTable(w io.Writer, mistakes []model.MistakeRecord, prompt func(categoryID, questionID string) string) error {
	if len(mistakes) == 0 {
		_, err := fmt.Fprintln(w, "No mistakes recorded.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Mistakes"); err != nil {
		return err
	}
	return writeTable(w, []string{"Category", "Question", "Prompt", "Missed"}, MistakeRows(mistakes, prompt), nil)
}

// MistakeRows builds display rows for mistake records.
func MistakeRows(mistakes []model.MistakeRecord, prompt func(categoryID, questionID string) string) [][]string {
	rows := make([][]string, 0, len(mistakes))
	for _, m := range mistakes {
		text := ""
		if prompt != nil {
			text = prompt(m.CategoryID, m.QuestionID)
		}
		cat := m.CategoryID
		if cat == "" {
			cat = "?"
		}
		rows = append(rows, []string{cat, m.QuestionID, text, m.Time().Local().Format("2006-01-02 15:04")})
	}
	return rows
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
