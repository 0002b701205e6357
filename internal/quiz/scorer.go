// Package quiz tracks the score of a single quiz run.
package quiz

import (
	"math"

	"github.com/verte-zerg/factopia/internal/model"
)

// Scoring rules.
const (
	CorrectPoints  = 10
	ComboBonus     = 5
	ComboThreshold = 3
	WrongPenalty   = 3
)

// Outcome describes the effect of one SubmitAnswer call.
type Outcome struct {
	Applied bool
	Correct bool
	Points  int
	Combo   int
	Score   int
}

// Scorer holds the transient state of one run. It is owned by the active
// run and is not safe for concurrent use.
type Scorer struct {
	score    int
	index    int
	combo    int
	mistakes []string
	answered bool
}

// NewScorer returns a Scorer ready for a new run.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Reset clears all run state.
func (s *Scorer) Reset() {
	s.score = 0
	s.index = 0
	s.combo = 0
	s.mistakes = nil
	s.answered = false
}

// SubmitAnswer scores the current question. Repeated calls before Advance
// are ignored.
func (s *Scorer) SubmitAnswer(isCorrect bool, questionID string) Outcome {
	if s.answered {
		return Outcome{Combo: s.combo, Score: s.score}
	}
	s.answered = true

	before := s.score
	if isCorrect {
		s.combo++
		points := CorrectPoints
		if s.combo >= ComboThreshold {
			points += ComboBonus
		}
		s.score += points
	} else {
		s.combo = 0
		s.score = max(0, s.score-WrongPenalty)
		s.mistakes = append(s.mistakes, questionID)
	}
	return Outcome{
		Applied: true,
		Correct: isCorrect,
		Points:  s.score - before,
		Combo:   s.combo,
		Score:   s.score,
	}
}

// Advance moves to the next question.
func (s *Scorer) Advance() {
	s.index++
	s.answered = false
}

// AnsweredCount returns how many questions have been scored.
func (s *Scorer) AnsweredCount() int {
	if s.answered {
		return s.index + 1
	}
	return s.index
}

// CorrectCount returns the answered count minus mistakes.
func (s *Scorer) CorrectCount() int {
	return max(0, s.AnsweredCount()-len(s.mistakes))
}

// CurrentAccuracy returns the rounded percentage of correct answers, 0 when
// nothing has been answered.
func (s *Scorer) CurrentAccuracy() int {
	answered := s.AnsweredCount()
	if answered == 0 {
		return 0
	}
	pct := math.Round(float64(answered-len(s.mistakes)) / float64(answered) * 100)
	return max(0, int(pct))
}

// Score returns the current score.
func (s *Scorer) Score() int { return s.score }

// Index returns the current question index.
func (s *Scorer) Index() int { return s.index }

// Combo returns the current streak of correct answers.
func (s *Scorer) Combo() int { return s.combo }

// Answered reports whether the current question is already scored.
func (s *Scorer) Answered() bool { return s.answered }

// Mistakes returns the question ids missed in this run, in order.
func (s *Scorer) Mistakes() []string {
	out := make([]string, len(s.mistakes))
	copy(out, s.mistakes)
	return out
}

// Result snapshots the run for the progress ledger.
func (s *Scorer) Result() model.RunResult {
	return model.RunResult{
		Score:    s.score,
		Accuracy: s.CurrentAccuracy(),
		Answered: s.AnsweredCount(),
		Correct:  s.CorrectCount(),
		Mistakes: s.Mistakes(),
	}
}
