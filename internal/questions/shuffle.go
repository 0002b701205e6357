package questions

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/factopia/internal/model"
)

// Shuffler randomises question and option order.
type Shuffler struct {
	rnd *rand.Rand
}

// NewShuffler returns a Shuffler seeded with the current time.
func NewShuffler() *Shuffler {
	return NewSeededShuffler(time.Now().UnixNano())
}

// NewSeededShuffler returns a deterministic Shuffler.
func NewSeededShuffler(seed int64) *Shuffler {
	return &Shuffler{rnd: rand.New(rand.NewSource(seed))}
}

// Questions returns a shuffled copy of qs.
func (s *Shuffler) Questions(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	copy(out, qs)
	for i := len(out) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Options returns q with its options in random order. The answer is
// unaffected since it is matched by value.
func (s *Shuffler) Options(q model.Question) model.Question {
	if len(q.Options) < 2 {
		return q
	}
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	s.rnd.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	q.Options = opts
	return q
}
