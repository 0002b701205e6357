package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/factopia/internal/kv"
	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/settings"
)

type recorder struct {
	runs []model.RunRecord
}

func (r *recorder) InsertRun(_ context.Context, run model.RunRecord) (string, error) {
	r.runs = append(r.runs, run)
	return "id", nil
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func fixtureQuestions() []model.Question {
	return []model.Question{
		{ID: "q1", Type: model.SingleImageToText, Prompt: "Which flag?", Options: []string{"Canada", "Peru"}, Answer: model.Answer{Text: "Canada"}},
		{ID: "q2", Type: model.TrueFalseImage, Prompt: "Is this Peru?", Answer: model.Answer{Bool: true, IsBool: true}},
	}
}

func newTestModel(t *testing.T, opts Options) (*Model, *progress.Ledger, *recorder) {
	t.Helper()
	ctx := context.Background()
	store := kv.NewMemory()
	ledger := progress.Load(ctx, store)
	rec := &recorder{}
	m := NewModel(opts, ledger, rec, settings.Load(ctx, store, nil), nil)
	return m, ledger, rec
}

func TestPlayRunRecordsResult(t *testing.T) {
	cat := model.Category{ID: "flags", Name: "Flags"}
	m, ledger, rec := newTestModel(t, Options{Category: cat, LevelID: "level_1", NextLevelID: "level_2", Questions: fixtureQuestions()})

	m.Update(keys("1"))
	if m.phase != phaseFeedback || !m.outcome.Correct {
		t.Fatalf("expected correct feedback after choosing option 1")
	}
	m.Update(keys("1"))
	if m.scorer.Score() != 10 {
		t.Fatalf("expected repeated answer to be ignored, score %d", m.scorer.Score())
	}
	m.Update(enter)
	m.Update(keys("2"))
	if m.outcome.Correct {
		t.Fatalf("expected false to be wrong")
	}
	m.Update(enter)

	res, ok := m.Result()
	if !ok {
		t.Fatalf("expected run to be finished")
	}
	if res.Score != 7 || res.Accuracy != 50 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if lvl, ok := ledger.Level("flags", "level_1"); !ok || lvl.Score != 7 {
		t.Fatalf("expected level result stored, got %+v", lvl)
	}
	if ledger.IsUnlocked("flags", "level_2", 1) {
		t.Fatalf("expected next level to stay locked below pass accuracy")
	}
	if mistakes := ledger.MistakesFor("flags"); len(mistakes) != 1 || mistakes[0].QuestionID != "q2" {
		t.Fatalf("unexpected mistakes: %+v", mistakes)
	}
	if len(rec.runs) != 1 || rec.runs[0].Score != 7 {
		t.Fatalf("expected run history entry, got %+v", rec.runs)
	}
	if !strings.Contains(m.View(), "Run complete") {
		t.Fatalf("expected result screen")
	}
}

func TestReviewClearsMistakes(t *testing.T) {
	ctx := context.Background()
	cat := model.Category{ID: "flags", Name: "Flags"}
	m, ledger, rec := newTestModel(t, Options{Category: cat, Review: true, Questions: fixtureQuestions()[:1]})
	ledger.MergeMistakes(ctx, "flags", []string{"q1"})

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(enter)
	if len(ledger.MistakesFor("flags")) != 0 {
		t.Fatalf("expected mistake cleared after a correct review answer")
	}
	m.Update(enter)
	if ledger.Stats().TotalAnswered != 1 || ledger.Stats().TotalCorrect != 1 {
		t.Fatalf("unexpected stats: %+v", ledger.Stats())
	}
	if ledger.TotalScore() != 0 {
		t.Fatalf("expected review to leave total score alone")
	}
	if len(rec.runs) != 0 {
		t.Fatalf("expected review runs to stay out of history")
	}
}

func TestFavoriteAndThemeKeys(t *testing.T) {
	cat := model.Category{ID: "flags", Name: "Flags"}
	m, ledger, _ := newTestModel(t, Options{Category: cat, LevelID: "level_1", Questions: fixtureQuestions()})

	m.Update(keys("f"))
	if !ledger.IsFavorite("flags", "q1") {
		t.Fatalf("expected q1 favorited")
	}
	if !strings.Contains(m.View(), "★") {
		t.Fatalf("expected favorite marker in view")
	}
	m.Update(keys("t"))
	if m.settings.Theme() != settings.ThemeModern {
		t.Fatalf("expected theme toggled to modern, got %q", m.settings.Theme())
	}
	if footer := m.renderFooter(); !strings.Contains(footer, "Theme modern") {
		t.Fatalf("expected theme in footer: %s", footer)
	}
}

func TestEmptyRun(t *testing.T) {
	m, _, _ := newTestModel(t, Options{Category: model.Category{ID: "x"}})
	if _, ok := m.Result(); ok {
		t.Fatalf("expected no result for an empty run")
	}
	if !strings.Contains(m.View(), "No questions") {
		t.Fatalf("expected empty message")
	}
}
