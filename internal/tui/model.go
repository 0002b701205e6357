// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/factopia/internal/logger"
	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/quiz"
	"github.com/verte-zerg/factopia/internal/settings"
)

// RunRecorder keeps finished runs in the local history.
type RunRecorder interface {
	InsertRun(ctx context.Context, run model.RunRecord) (string, error)
}

// Options selects what the model plays.
type Options struct {
	Category    model.Category
	LevelID     string
	LevelName   string
	NextLevelID string
	Questions   []model.Question
	// Review replays mistakes: a correct answer clears the mistake and the
	// run does not count towards level results.
	Review bool
}

type phase int

const (
	phaseAsk phase = iota
	phaseFeedback
	phaseDone
)

// Model implements the Bubble Tea quiz UI.
type Model struct {
	opts     Options
	ledger   *progress.Ledger
	runs     RunRecorder
	settings *settings.Settings
	log      *logger.Logger
	now      func() time.Time
	styles   Styles

	width  int
	height int

	scorer    *quiz.Scorer
	phase     phase
	cursor    int
	chosen    string
	outcome   quiz.Outcome
	startedAt time.Time
	result    model.RunResult
	unlocked  bool
	cleared   int
}

// NewModel constructs a quiz TUI model. runs may be nil when the backend
// keeps no history.
func NewModel(opts Options, ledger *progress.Ledger, runs RunRecorder, prefs *settings.Settings, log *logger.Logger) *Model {
	if log == nil {
		log = logger.Nop()
	}
	m := &Model{
		opts:     opts,
		ledger:   ledger,
		runs:     runs,
		settings: prefs,
		log:      log,
		now:      time.Now,
		styles:   StylesFor(prefs.Theme()),
		scorer:   quiz.NewScorer(),
	}
	m.startedAt = m.now()
	if len(opts.Questions) == 0 {
		m.phase = phaseDone
	}
	return m
}

// Result returns the final run result once the run is over.
func (m *Model) Result() (model.RunResult, bool) {
	return m.result, m.phase == phaseDone && len(m.opts.Questions) > 0
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return tea.Quit
	case "t":
		m.styles = StylesFor(m.settings.ToggleTheme(context.Background()))
		return nil
	case "s":
		m.settings.ToggleSound(context.Background())
		return nil
	}

	switch m.phase {
	case phaseAsk:
		return m.handleAskKey(msg)
	case phaseFeedback:
		switch msg.String() {
		case "enter", " ", "n", "right":
			m.advance()
		case "f":
			m.toggleFavorite()
		}
	case phaseDone:
		if msg.String() == "enter" {
			return tea.Quit
		}
	}
	return nil
}

func (m *Model) handleAskKey(msg tea.KeyMsg) tea.Cmd {
	choices := m.current().Choices()
	switch key := msg.String(); key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(choices)-1 {
			m.cursor++
		}
	case "f":
		m.toggleFavorite()
	case "enter", " ":
		if len(choices) > 0 {
			return m.answer(choices[m.cursor])
		}
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			idx := int(key[0] - '1')
			if idx < len(choices) {
				m.cursor = idx
				return m.answer(choices[idx])
			}
		}
	}
	return nil
}

func (m *Model) current() model.Question {
	idx := m.scorer.Index()
	if idx >= len(m.opts.Questions) {
		return model.Question{}
	}
	return m.opts.Questions[idx]
}

func (m *Model) answer(choice string) tea.Cmd {
	q := m.current()
	out := m.scorer.SubmitAnswer(q.IsCorrect(choice), string(q.ID))
	if !out.Applied {
		return nil
	}
	m.chosen = choice
	m.outcome = out
	m.phase = phaseFeedback
	if m.opts.Review && out.Correct {
		m.ledger.ClearMistake(context.Background(), m.opts.Category.ID, string(q.ID))
		m.cleared++
	}
	if !out.Correct && m.settings.SoundEnabled() {
		return bell
	}
	return nil
}

func (m *Model) advance() {
	m.scorer.Advance()
	m.cursor = 0
	m.chosen = ""
	if m.scorer.Index() >= len(m.opts.Questions) {
		m.finish()
		return
	}
	m.phase = phaseAsk
}

func (m *Model) toggleFavorite() {
	q := m.current()
	if q.ID == "" {
		return
	}
	m.ledger.ToggleFavorite(context.Background(), m.opts.Category.ID, string(q.ID))
}

func (m *Model) finish() {
	m.phase = phaseDone
	m.result = m.scorer.Result()
	ctx := context.Background()
	catID := m.opts.Category.ID

	if m.opts.Review {
		m.ledger.RecordRunStats(ctx, m.result.Answered, m.result.Correct)
		m.ledger.MergeMistakes(ctx, catID, m.result.Mistakes)
		m.log.Info("review finished", "category", catID, "cleared", m.cleared, "remaining", len(m.result.Mistakes))
		return
	}

	m.unlocked = m.ledger.CompleteRun(ctx, catID, m.opts.LevelID, m.opts.NextLevelID, m.result)
	m.log.Info("run finished",
		"category", catID,
		"level", m.opts.LevelID,
		"score", m.result.Score,
		"accuracy", m.result.Accuracy,
		"unlocked", m.unlocked,
	)
	if m.runs == nil {
		return
	}
	run := model.RunRecord{
		CategoryID: catID,
		LevelID:    m.opts.LevelID,
		Score:      m.result.Score,
		Accuracy:   m.result.Accuracy,
		Answered:   m.result.Answered,
		Correct:    m.result.Correct,
		StartedAt:  m.startedAt,
		EndedAt:    m.now(),
	}
	if _, err := m.runs.InsertRun(ctx, run); err != nil {
		m.log.Warn("failed to save run history", "error", err)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.phase {
	case phaseDone:
		body = m.renderResult()
	default:
		body = m.renderQuestion()
	}
	content := m.styles.Box.Render(body)
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	main := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	return main + "\n" + lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(int(float64(m.width)*0.70)-6, 20)
}

func (m *Model) renderQuestion() string {
	q := m.current()
	st := m.styles
	var b strings.Builder

	title := m.opts.Category.Name
	if m.opts.Review {
		title += " · review"
	} else if m.opts.LevelName != "" {
		title += " · " + m.opts.LevelName
	}
	b.WriteString(st.Title.Render(fmt.Sprintf("%s  %d/%d", title, m.scorer.Index()+1, len(m.opts.Questions))))
	if m.ledger.IsFavorite(m.opts.Category.ID, string(q.ID)) {
		b.WriteString(st.Accent.Render("  ★"))
	}
	b.WriteString("\n\n")

	for _, line := range wrapText(q.Prompt, m.contentWidth()) {
		b.WriteString(st.Prompt.Render(line))
		b.WriteByte('\n')
	}
	if q.Image != "" {
		b.WriteString(st.Muted.Render("[image] " + q.Image))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	for i, choice := range q.Choices() {
		b.WriteString(m.renderChoice(q, i, choice))
		b.WriteByte('\n')
	}

	if m.phase == phaseFeedback {
		b.WriteByte('\n')
		b.WriteString(m.renderFeedback(q))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderChoice(q model.Question, i int, choice string) string {
	st := m.styles
	label := fmt.Sprintf("%d. %s", i+1, choiceLabel(q, choice))
	if m.phase == phaseFeedback {
		switch {
		case q.IsCorrect(choice):
			return st.Correct.Render("✓ " + label)
		case choice == m.chosen:
			return st.Wrong.Render("✗ " + label)
		default:
			return st.Muted.Render("  " + label)
		}
	}
	if i == m.cursor {
		return st.Selected.Render("› " + label)
	}
	return st.Option.Render("  " + label)
}

func choiceLabel(q model.Question, choice string) string {
	if q.Answer.IsBool && len(q.Options) == 0 {
		if choice == "true" {
			return "True"
		}
		return "False"
	}
	return choice
}

func (m *Model) renderFeedback(q model.Question) string {
	st := m.styles
	var b strings.Builder
	if m.outcome.Correct {
		msg := fmt.Sprintf("Correct! +%d", m.outcome.Points)
		if m.outcome.Combo >= quiz.ComboThreshold {
			msg += fmt.Sprintf("  combo x%d", m.outcome.Combo)
		}
		b.WriteString(st.Correct.Render(msg))
	} else {
		b.WriteString(st.Wrong.Render(fmt.Sprintf("Wrong. The answer is %s", choiceLabel(q, q.Answer.String()))))
	}
	if q.Explanation != "" {
		b.WriteString("\n\n")
		for _, line := range wrapText(q.Explanation, m.contentWidth()) {
			b.WriteString(st.Muted.Render(line))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderResult() string {
	st := m.styles
	if len(m.opts.Questions) == 0 {
		return st.Muted.Render("No questions to play. Press q to quit.")
	}
	res := m.result
	lines := []string{
		st.Title.Render("Run complete"),
		"",
		fmt.Sprintf("Score     %d", res.Score),
		fmt.Sprintf("Accuracy  %d%%", res.Accuracy),
		fmt.Sprintf("Correct   %d/%d", res.Correct, res.Answered),
	}
	switch {
	case m.opts.Review:
		lines = append(lines, "", st.Correct.Render(fmt.Sprintf("Cleared %d mistake(s)", m.cleared)))
	case m.unlocked:
		lines = append(lines, "", st.Correct.Render("Next level unlocked!"))
	case m.opts.NextLevelID != "" && res.Accuracy < m.ledger.PassAccuracy():
		lines = append(lines, "", st.Wrong.Render(fmt.Sprintf("Reach %d%% accuracy to unlock the next level", m.ledger.PassAccuracy())))
	}
	if len(res.Mistakes) > 0 && !m.opts.Review {
		lines = append(lines, st.Muted.Render(fmt.Sprintf("%d question(s) added to the mistake book", len(res.Mistakes))))
	}
	lines = append(lines, "", st.Muted.Render("Press enter to exit"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	sound := "on"
	if !m.settings.SoundEnabled() {
		sound = "off"
	}
	segments := []string{
		fmt.Sprintf("Score %d", m.scorer.Score()),
		fmt.Sprintf("Combo %d", m.scorer.Combo()),
		fmt.Sprintf("Accuracy %d%%", m.scorer.CurrentAccuracy()),
		fmt.Sprintf("Total %d", m.ledger.TotalScore()),
		fmt.Sprintf("Sound %s", sound),
		fmt.Sprintf("Theme %s", m.settings.Theme()),
	}
	help := "1-9/enter answer · f favorite · s sound · t theme · q quit"
	return m.styles.Muted.Render(strings.Join(segments, "  ") + "   " + help)
}

func bell() tea.Msg {
	_, _ = fmt.Fprint(os.Stderr, "\a")
	return nil
}
