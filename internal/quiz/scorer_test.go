package quiz

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestComboBonusStartsAtThirdCorrect(t *testing.T) {
	s := NewScorer()
	want := []int{10, 20, 35, 50}
	for i, expected := range want {
		out := s.SubmitAnswer(true, fmt.Sprintf("q%d", i))
		if !out.Applied {
			t.Fatalf("answer %d not applied", i)
		}
		if s.Score() != expected {
			t.Fatalf("after answer %d expected score %d, got %d", i, expected, s.Score())
		}
		s.Advance()
	}
	if s.Combo() != 4 {
		t.Fatalf("expected combo 4, got %d", s.Combo())
	}
}

func TestWrongAnswerResetsComboAndFloorsScore(t *testing.T) {
	s := NewScorer()
	out := s.SubmitAnswer(false, "q1")
	if s.Score() != 0 || out.Points != 0 {
		t.Fatalf("expected score floored at 0, got score=%d points=%d", s.Score(), out.Points)
	}
	s.Advance()

	s.SubmitAnswer(true, "q2")
	s.Advance()
	s.SubmitAnswer(true, "q3")
	s.Advance()
	out = s.SubmitAnswer(false, "q4")
	if s.Combo() != 0 {
		t.Fatalf("expected combo reset, got %d", s.Combo())
	}
	if s.Score() != 17 || out.Points != -3 {
		t.Fatalf("expected score 17 after penalty, got score=%d points=%d", s.Score(), out.Points)
	}
	mistakes := s.Mistakes()
	if len(mistakes) != 2 || mistakes[0] != "q1" || mistakes[1] != "q4" {
		t.Fatalf("unexpected mistakes: %v", mistakes)
	}
}

func TestDuplicateSubmitIsIgnored(t *testing.T) {
	for _, correct := range []bool{true, false} {
		t.Run(fmt.Sprintf("correct=%v", correct), func(t *testing.T) {
			s := NewScorer()
			s.SubmitAnswer(true, "warmup")
			s.Advance()
			first := s.SubmitAnswer(correct, "q")
			scoreAfterFirst := s.Score()
			second := s.SubmitAnswer(correct, "q")
			third := s.SubmitAnswer(!correct, "q")
			if second.Applied || third.Applied {
				t.Fatalf("expected duplicate submissions to be ignored")
			}
			if s.Score() != scoreAfterFirst || s.Score() != first.Score {
				t.Fatalf("score changed by duplicate submit: %d -> %d", scoreAfterFirst, s.Score())
			}
			if !correct && len(s.Mistakes()) != 1 {
				t.Fatalf("expected a single mistake, got %v", s.Mistakes())
			}
		})
	}
}

func TestCurrentAccuracy(t *testing.T) {
	s := NewScorer()
	if s.CurrentAccuracy() != 0 {
		t.Fatalf("expected 0 accuracy before any answer")
	}
	s.SubmitAnswer(true, "q1")
	if s.CurrentAccuracy() != 100 {
		t.Fatalf("expected 100, got %d", s.CurrentAccuracy())
	}
	s.Advance()
	if s.CurrentAccuracy() != 100 {
		t.Fatalf("expected accuracy to count only answered questions, got %d", s.CurrentAccuracy())
	}
	s.SubmitAnswer(false, "q2")
	s.Advance()
	s.SubmitAnswer(false, "q3")
	if got := s.CurrentAccuracy(); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}

func TestTenQuestionRun(t *testing.T) {
	pattern := []bool{true, true, false, true, true, false, true, true, true, true}
	scores := []int{10, 20, 17, 27, 37, 34, 44, 54, 69, 84}

	s := NewScorer()
	for i, correct := range pattern {
		s.SubmitAnswer(correct, fmt.Sprintf("q%d", i+1))
		if s.Score() != scores[i] {
			t.Fatalf("question %d: expected score %d, got %d", i+1, scores[i], s.Score())
		}
		if i < len(pattern)-1 {
			s.Advance()
		}
	}
	res := s.Result()
	if res.Score != 84 || res.Accuracy != 80 || res.Answered != 10 || res.Correct != 8 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Mistakes) != 2 || res.Mistakes[0] != "q3" || res.Mistakes[1] != "q6" {
		t.Fatalf("unexpected mistakes: %v", res.Mistakes)
	}
}

func TestScoreNeverNegative(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	s := NewScorer()
	for i := 0; i < 500; i++ {
		s.SubmitAnswer(rnd.Intn(3) == 0, fmt.Sprintf("q%d", i))
		if s.Score() < 0 {
			t.Fatalf("score went negative at step %d: %d", i, s.Score())
		}
		if rnd.Intn(4) != 0 {
			s.Advance()
		}
	}
}

func TestResetClearsState(t *testing.T) {
	s := NewScorer()
	s.SubmitAnswer(false, "q1")
	s.Advance()
	s.SubmitAnswer(true, "q2")
	s.Reset()
	if s.Score() != 0 || s.Index() != 0 || s.Combo() != 0 || s.Answered() || len(s.Mistakes()) != 0 {
		t.Fatalf("expected clean state after reset")
	}
}
