// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/questions"
	"github.com/verte-zerg/factopia/internal/settings"
	"github.com/verte-zerg/factopia/internal/stats"
	"github.com/verte-zerg/factopia/internal/tui"
)

const (
	tabOverview = iota
	tabLevels
	tabMistakes
	tabFavorites
)

const plotHeight = 8

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

type snapshotMsg struct {
	version uint64
}

// Model implements the Bubble Tea stats UI.
type Model struct {
	ledger *progress.Ledger
	runs   stats.RunSource
	bank   *questions.Bank
	cfg    model.StatsConfig
	styles tui.Styles

	report     stats.Report
	categories []model.Category
	errMsg     string

	tabs      []string
	activeTab int
	overview  viewport.Model
	tables    map[int]*table.Model
	records   map[int][]model.Record

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model

	updates     chan uint64
	done        chan struct{}
	unsubscribe func()
}

// NewModel constructs a stats UI model. runs may be nil when the backend
// keeps no run history.
func NewModel(ledger *progress.Ledger, runs stats.RunSource, bank *questions.Bank, theme settings.Theme, cfg model.StatsConfig) *Model {
	m := &Model{
		ledger:   ledger,
		runs:     runs,
		bank:     bank,
		cfg:      cfg,
		styles:   tui.StylesFor(theme),
		tabs:     []string{"Overview", "Levels", "Mistakes", "Favorites"},
		overview: viewport.New(0, 0),
		tables:   map[int]*table.Model{},
		records:  map[int][]model.Record{},
		updates:  make(chan uint64, 1),
		done:     make(chan struct{}),
	}
	for _, tab := range []int{tabLevels, tabMistakes, tabFavorites} {
		t := newTable()
		m.tables[tab] = &t
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Category: "
	m.filterInput.Placeholder = "all"
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)

	m.unsubscribe = ledger.Subscribe(func(snap progress.Snapshot) {
		// Keep only the newest version pending.
		select {
		case <-m.updates:
		default:
		}
		select {
		case m.updates <- snap.Version:
		default:
		}
	})
	m.refresh()
	return m
}

// Close detaches the model from ledger updates and releases a pending
// update wait.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
		close(m.done)
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m *Model) waitForUpdate() tea.Cmd {
	ch, done := m.updates, m.done
	return func() tea.Msg {
		select {
		case v := <-ch:
			return snapshotMsg{version: v}
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case snapshotMsg:
		if msg.version > m.report.Progress.Version {
			m.refresh()
		}
		return m, m.waitForUpdate()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			m.Close()
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow++
			m.renderOverview()
			return m, nil
		case "-":
			m.cfg.CurveWindow = max(1, m.cfg.CurveWindow-1)
			m.renderOverview()
			return m, nil
		case "/":
			m.filterMode = true
			m.filterInput.SetValue(m.cfg.CategoryID)
			return m, m.filterInput.Focus()
		case "x", "delete":
			m.removeSelected()
			return m, nil
		}
		if t, ok := m.tables[m.activeTab]; ok {
			var cmd tea.Cmd
			*t, cmd = t.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.overview, cmd = m.overview.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.filterMode = false
		m.filterInput.Blur()
		m.cfg.CategoryID = strings.TrimSpace(m.filterInput.Value())
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	for tab, t := range m.tables {
		if tab == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

// removeSelected clears the highlighted mistake or favorite.
func (m *Model) removeSelected() {
	t, ok := m.tables[m.activeTab]
	if !ok {
		return
	}
	recs := m.records[m.activeTab]
	idx := t.Cursor()
	if idx < 0 || idx >= len(recs) {
		return
	}
	rec := recs[idx]
	ctx := context.Background()
	switch m.activeTab {
	case tabMistakes:
		m.ledger.ClearMistake(ctx, rec.CategoryID, rec.QuestionID)
	case tabFavorites:
		m.ledger.ToggleFavorite(ctx, rec.CategoryID, rec.QuestionID)
	}
	m.refresh()
}

func (m *Model) refresh() {
	ctx := context.Background()
	report, err := stats.BuildReport(ctx, m.runs, m.ledger, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		report = stats.Report{Progress: m.ledger.Snapshot()}
	} else {
		m.errMsg = ""
	}
	m.report = report
	m.categories = m.filteredCategories(ctx)

	m.setTable(tabLevels, levelColumns(), toRows(stats.LevelRows(m.categories, report.Progress.Levels)), nil)

	mistakes := m.filterRecords(report.Progress.Mistakes)
	m.setTable(tabMistakes, recordColumns("Missed"), toRows(stats.MistakeRows(mistakes, m.prompt)), mistakes)

	favorites := m.filterRecords(report.Progress.Favorites)
	m.setTable(tabFavorites, recordColumns("Added"), toRows(stats.MistakeRows(favorites, m.prompt)), favorites)

	m.renderOverview()
}

func (m *Model) setTable(tab int, cols []table.Column, rows []table.Row, recs []model.Record) {
	t := m.tables[tab]
	t.SetRows(nil)
	t.SetColumns(cols)
	t.SetRows(rows)
	if t.Cursor() >= len(rows) {
		t.SetCursor(max(0, len(rows)-1))
	}
	m.records[tab] = recs
}

func (m *Model) filteredCategories(ctx context.Context) []model.Category {
	if m.bank == nil {
		return nil
	}
	all := m.bank.Categories(ctx)
	if m.cfg.CategoryID == "" {
		return all
	}
	for _, c := range all {
		if c.ID == m.cfg.CategoryID {
			return []model.Category{c}
		}
	}
	return nil
}

func (m *Model) filterRecords(recs []model.Record) []model.Record {
	if m.cfg.CategoryID == "" {
		return recs
	}
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if r.CategoryID == m.cfg.CategoryID {
			out = append(out, r)
		}
	}
	return out
}

func (m *Model) prompt(categoryID, questionID string) string {
	if m.bank == nil || categoryID == "" {
		return ""
	}
	q, ok := m.bank.Question(context.Background(), categoryID, questionID)
	if !ok {
		return ""
	}
	return q.Prompt
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = lipgloss.Height(m.renderTabs()) + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for _, t := range m.tables {
		t.SetWidth(m.width)
		t.SetHeight(max(1, bodyHeight-1))
	}
	m.filterInput.Width = max(10, m.width-lipgloss.Width(m.filterInput.Prompt)-2)
}

func (m *Model) renderTabs() string {
	active := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder(), true).
		BorderForeground(m.styles.Accent.GetForeground())
	inactive := active.
		Bold(false).
		Foreground(lipgloss.Color("#B0B0B0")).
		BorderForeground(lipgloss.Color("#4A4A4A"))
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, active.Render(tab))
		} else {
			parts = append(parts, inactive.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	if m.filterMode {
		return m.renderTabs() + "\n" + m.filterInput.View()
	}
	cat := m.cfg.CategoryID
	if cat == "" {
		cat = "all"
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = fmt.Sprintf("%d", m.cfg.Last)
	}
	summary := fmt.Sprintf("Filter: category=%s  last=%s  window=%d", cat, last, m.cfg.CurveWindow)
	return m.renderTabs() + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down  Window: -/=  Filter: /  Quit: q"
	if m.activeTab == tabMistakes || m.activeTab == tabFavorites {
		help = "Nav: left/right  Select: up/down  Remove: x  Filter: /  Quit: q"
	}
	out := headerStyle.Render(help)
	if m.errMsg != "" {
		out += "\n" + errorStyle.Render(m.errMsg)
	}
	return out
}

func (m *Model) renderBody() string {
	t, ok := m.tables[m.activeTab]
	if !ok {
		return m.overview.View()
	}
	if len(t.Rows()) == 0 {
		switch m.activeTab {
		case tabLevels:
			return "No levels found."
		case tabMistakes:
			return "No mistakes recorded."
		default:
			return "No favorites yet."
		}
	}
	return t.View()
}

func (m *Model) renderOverview() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	parts := []string{renderCards(m.report, width)}
	if top := stats.TopCategoriesByMistakes(m.filterRecords(m.report.Progress.Mistakes), 3); len(top) > 0 {
		names := make([]string, 0, len(top))
		for _, c := range top {
			names = append(names, fmt.Sprintf("%s (%d)", labelOr(c.CategoryID, "uncategorised"), c.Count))
		}
		parts = append(parts, headerStyle.Render("Most missed: "+strings.Join(names, ", ")))
	}
	if len(m.report.Runs) == 0 {
		parts = append(parts, "No runs recorded yet.")
	} else {
		var buf bytes.Buffer
		if err := stats.RenderCurvesWithSize(&buf, m.report.Runs, m.cfg.CurveWindow, width, plotHeight, true); err != nil {
			parts = append(parts, fmt.Sprintf("Failed to render curves: %v", err))
		} else {
			parts = append(parts, strings.TrimRight(buf.String(), "\n"))
		}
	}
	m.overview.SetContent(strings.Join(parts, "\n\n"))
}

func renderCards(r stats.Report, width int) string {
	snap := r.Progress
	cards := []string{
		metricCard("Total Score", fmt.Sprintf("%d", snap.TotalScore)),
		metricCard("Answered", fmt.Sprintf("%d", snap.Stats.TotalAnswered)),
		metricCard("Accuracy", fmt.Sprintf("%.1f%%", stats.Accuracy(snap.Stats.TotalCorrect, snap.Stats.TotalAnswered))),
		metricCard("Mistakes", fmt.Sprintf("%d", len(snap.Mistakes))),
		metricCard("Favorites", fmt.Sprintf("%d", len(snap.Favorites))),
		metricCard("Runs", fmt.Sprintf("%d", len(r.Runs))),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...)
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	return cardStyle.Render(cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func newTable() table.Model {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		PaddingLeft(0)
	styles.Cell = styles.Cell.PaddingLeft(0)
	styles.Selected = styles.Cell.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	return table.New(table.WithStyles(styles), table.WithHeight(1))
}

func levelColumns() []table.Column {
	return []table.Column{
		{Title: "Category", Width: 18},
		{Title: "Level", Width: 18},
		{Title: "Best", Width: 6},
		{Title: "Accuracy", Width: 9},
		{Title: "Status", Width: 8},
	}
}

func recordColumns(when string) []table.Column {
	return []table.Column{
		{Title: "Category", Width: 16},
		{Title: "Question", Width: 10},
		{Title: "Prompt", Width: 40},
		{Title: when, Width: 16},
	}
}

func toRows(rows [][]string) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row(r)
	}
	return out
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
