package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/factopia/internal/settings"
)

// Styles is the lipgloss palette for one theme.
type Styles struct {
	Title    lipgloss.Style
	Prompt   lipgloss.Style
	Option   lipgloss.Style
	Selected lipgloss.Style
	Correct  lipgloss.Style
	Wrong    lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Box      lipgloss.Style
}

type palette struct {
	text, muted, accent, good, bad, border string
	frame                                  lipgloss.Border
}

var palettes = map[settings.Theme]palette{
	settings.ThemePixel: {
		text: "#F0F0F0", muted: "#8C8C8C", accent: "#FFD166",
		good: "#06D6A0", bad: "#EF476F", border: "#FFD166",
		frame: lipgloss.ThickBorder(),
	},
	settings.ThemeModern: {
		text: "#E6E6E6", muted: "#6E6E6E", accent: "#7AA2F7",
		good: "#9ECE6A", bad: "#F7768E", border: "#3B4261",
		frame: lipgloss.RoundedBorder(),
	},
	settings.ThemeClay: {
		text: "#F5E6D3", muted: "#A1887F", accent: "#C89A3A",
		good: "#8BC34A", bad: "#FF4D4F", border: "#8D6E63",
		frame: lipgloss.NormalBorder(),
	},
}

// StylesFor returns the styles of theme, falling back to pixel.
func StylesFor(theme settings.Theme) Styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[settings.ThemePixel]
	}
	fg := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
	return Styles{
		Title:    fg(p.accent).Bold(true),
		Prompt:   fg(p.text).Bold(true),
		Option:   fg(p.text),
		Selected: fg(p.accent).Bold(true),
		Correct:  fg(p.good).Bold(true),
		Wrong:    fg(p.bad).Bold(true),
		Muted:    fg(p.muted),
		Accent:   fg(p.accent),
		Box:      lipgloss.NewStyle().Border(p.frame).BorderForeground(lipgloss.Color(p.border)).Padding(1, 2),
	}
}
