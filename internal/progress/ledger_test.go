package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/factopia/internal/kv"
	"github.com/verte-zerg/factopia/internal/model"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLedger(t *testing.T) (*Ledger, *kv.Memory, *stepClock) {
	t.Helper()
	store := kv.NewMemory()
	clock := &stepClock{t: time.Unix(1_700_000_000, 0)}
	return Load(context.Background(), store, WithClock(clock.now)), store, clock
}

func TestRecordLevelResultKeepsBestButAccumulatesTotal(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	l.RecordLevelResult(ctx, "cars", "1", 80, 90)
	l.RecordLevelResult(ctx, "cars", "1", 70, 95)

	got, ok := l.Level("cars", "1")
	if !ok {
		t.Fatalf("expected level record")
	}
	if got.Score != 80 || got.Accuracy != 90 || !got.Unlocked {
		t.Fatalf("unexpected best: %+v", got)
	}
	if l.TotalScore() != 150 {
		t.Fatalf("expected total score 150, got %d", l.TotalScore())
	}

	l.RecordLevelResult(ctx, "cars", "1", 81, 50)
	got, _ = l.Level("cars", "1")
	if got.Score != 81 || got.Accuracy != 50 {
		t.Fatalf("expected strictly higher score to replace best, got %+v", got)
	}

	reloaded := Load(ctx, store)
	if p, _ := reloaded.Level("cars", "1"); p.Score != 81 {
		t.Fatalf("expected persisted best 81, got %+v", p)
	}
	if reloaded.TotalScore() != 231 {
		t.Fatalf("expected persisted total 231, got %d", reloaded.TotalScore())
	}
}

func TestRecordLevelResultEqualScoreDoesNotReplace(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	l.RecordLevelResult(ctx, "flags", "a", 40, 60)
	l.RecordLevelResult(ctx, "flags", "a", 40, 100)
	if got, _ := l.Level("flags", "a"); got.Accuracy != 60 {
		t.Fatalf("expected equal score to keep the first record, got %+v", got)
	}
}

func TestUnlockLevelNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	l.UnlockLevel(ctx, "cars", "2")
	got, ok := l.Level("cars", "2")
	if !ok || got != (model.LevelProgress{Unlocked: true}) {
		t.Fatalf("expected empty unlocked record, got %+v ok=%v", got, ok)
	}

	l.RecordLevelResult(ctx, "cars", "3", 55, 70)
	l.UnlockLevel(ctx, "cars", "3")
	got, _ = l.Level("cars", "3")
	if got.Score != 55 || got.Accuracy != 70 {
		t.Fatalf("unlock overwrote existing record: %+v", got)
	}
	if !l.IsUnlocked("cars", "1", 0) {
		t.Fatalf("first level must always be playable")
	}
	if l.IsUnlocked("cars", "9", 4) {
		t.Fatalf("unknown later level must be locked")
	}
}

func TestMergeMistakesDeduplicatesAndOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLedger(t)

	l.MergeMistakes(ctx, "other", []string{"q1"})
	l.MergeMistakes(ctx, "cat", []string{"q1", "q2"})
	l.MergeMistakes(ctx, "cat", []string{"q2"})
	secondCall := clock.t.UnixMilli()

	got := l.Mistakes()
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %+v", got)
	}
	if !got[0].Matches("cat", "q2") || got[0].Timestamp != secondCall {
		t.Fatalf("expected q2 first with second-call timestamp, got %+v", got[0])
	}
	if !got[1].Matches("cat", "q1") {
		t.Fatalf("expected q1 after q2, got %+v", got[1])
	}
	if !got[2].Matches("other", "q1") {
		t.Fatalf("expected other category untouched, got %+v", got[2])
	}
	if len(l.MistakesFor("cat")) != 2 {
		t.Fatalf("expected 2 records for cat")
	}
}

func TestMergeMistakesCollapsesRepeatsAndIgnoresEmpty(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	l.MergeMistakes(ctx, "cat", nil)
	if _, ok, _ := store.Get(ctx, KeyMistakes); ok {
		t.Fatalf("expected empty merge to leave storage untouched")
	}
	l.MergeMistakes(ctx, "cat", []string{"q1", "q1", "q3"})
	got := l.Mistakes()
	if len(got) != 2 || got[0].QuestionID != "q1" || got[1].QuestionID != "q3" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestClearMistake(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)
	l.MergeMistakes(ctx, "cat", []string{"q1", "q2"})

	l.ClearMistake(ctx, "cat", "q1")
	l.ClearMistake(ctx, "cat", "missing")
	l.ClearMistake(ctx, "dog", "q2")

	got := l.Mistakes()
	if len(got) != 1 || got[0].QuestionID != "q2" {
		t.Fatalf("unexpected records after clear: %+v", got)
	}
	if len(Load(ctx, store).Mistakes()) != 1 {
		t.Fatalf("expected clear to be persisted")
	}
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	if l.IsFavorite("cat", "q1") {
		t.Fatalf("expected not favorite initially")
	}
	if !l.ToggleFavorite(ctx, "cat", "q1") || !l.IsFavorite("cat", "q1") {
		t.Fatalf("expected favorite after first toggle")
	}
	l.ToggleFavorite(ctx, "cat", "q2")
	if favs := l.Favorites(); favs[0].QuestionID != "q2" {
		t.Fatalf("expected newest favorite first, got %+v", favs)
	}
	if l.ToggleFavorite(ctx, "cat", "q1") || l.IsFavorite("cat", "q1") {
		t.Fatalf("expected not favorite after second toggle")
	}
	reloaded := Load(ctx, store)
	if reloaded.IsFavorite("cat", "q1") || !reloaded.IsFavorite("cat", "q2") {
		t.Fatalf("unexpected persisted favorites: %+v", reloaded.Favorites())
	}
}

func TestToggleFavoriteConcurrent(t *testing.T) {
	ctx := context.Background()
	l := Load(ctx, kv.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.ToggleFavorite(ctx, "cat", "q1")
		}()
	}
	wg.Wait()
	if l.IsFavorite("cat", "q1") {
		t.Fatalf("an even number of toggles must end absent")
	}
	if len(l.Favorites()) != 0 {
		t.Fatalf("expected no duplicate records, got %+v", l.Favorites())
	}
}

func TestRecordRunStats(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	l.RecordRunStats(ctx, 10, 8)
	l.RecordRunStats(ctx, 5, 5)
	l.RecordRunStats(ctx, -1, 3)

	got := l.Stats()
	if got.TotalAnswered != 15 || got.TotalCorrect != 13 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestCompleteRunUnlocksNextLevelOnPass(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	res := model.RunResult{Score: 84, Accuracy: 80, Answered: 10, Correct: 8, Mistakes: []string{"q3", "q6"}}
	if !l.CompleteRun(ctx, "cars", "1", "2", res) {
		t.Fatalf("expected next level unlocked")
	}
	if !l.IsUnlocked("cars", "2", 1) {
		t.Fatalf("expected level 2 unlocked")
	}
	if got := l.Stats(); got.TotalAnswered != 10 || got.TotalCorrect != 8 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if len(l.MistakesFor("cars")) != 2 {
		t.Fatalf("expected mistakes merged")
	}

	fail := model.RunResult{Score: 5, Accuracy: 20, Answered: 5, Correct: 1}
	if l.CompleteRun(ctx, "cars", "2", "3", fail) {
		t.Fatalf("expected no unlock below pass accuracy")
	}
	if _, ok := l.Level("cars", "3"); ok {
		t.Fatalf("level 3 must stay locked")
	}
}

func TestLegacyMistakesAreMigrated(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	_ = store.Set(ctx, KeyLegacyMistakes, []byte(`["q1","q2","q1"]`))

	l := Load(ctx, store, WithClock(func() time.Time { return time.UnixMilli(42) }))
	got := l.Mistakes()
	if len(got) != 2 || got[0].QuestionID != "q1" || got[1].QuestionID != "q2" || got[0].Timestamp != 42 {
		t.Fatalf("unexpected migrated records: %+v", got)
	}
	if _, ok, _ := store.Get(ctx, KeyLegacyMistakes); ok {
		t.Fatalf("expected legacy key removed")
	}
	if _, ok, _ := store.Get(ctx, KeyMistakes); !ok {
		t.Fatalf("expected versioned key written")
	}
}

func TestLegacyMistakesWithUnknownShapeAreLeftAlone(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	_ = store.Set(ctx, KeyLegacyMistakes, []byte(`{"weird":true}`))

	l := Load(ctx, store)
	if l.Degraded() != nil {
		t.Fatalf("unexpected degraded mode: %v", l.Degraded())
	}
	if len(l.Mistakes()) != 0 {
		t.Fatalf("expected no records")
	}
	if _, ok, _ := store.Get(ctx, KeyLegacyMistakes); !ok {
		t.Fatalf("legacy key must not be deleted")
	}
}

func TestLegacyMistakesWithNumericIDsAreMigrated(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	_ = store.Set(ctx, KeyLegacyMistakes, []byte(`[101,"q2",101]`))

	l := Load(ctx, store)
	got := l.Mistakes()
	if len(got) != 2 || got[0].QuestionID != "101" || got[1].QuestionID != "q2" {
		t.Fatalf("unexpected migrated records: %+v", got)
	}
	if _, ok, _ := store.Get(ctx, KeyLegacyMistakes); ok {
		t.Fatalf("expected legacy key removed")
	}

	l.MergeMistakes(ctx, "cars", []string{"q9"})
	reloaded := Load(ctx, store)
	if n := len(reloaded.Mistakes()); n != 3 {
		t.Fatalf("expected migrated mistakes kept after a merge, got %+v", reloaded.Mistakes())
	}
}

type flakyStore struct {
	*kv.Memory
	failGet bool
	failSet bool
	failKey string
}

var errDiskGone = errors.New("disk gone")

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet || key == f.failKey {
		return nil, false, errDiskGone
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errDiskGone
	}
	return f.Memory.Set(ctx, key, value)
}

func TestWriteFailureDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: kv.NewMemory()}
	l := Load(ctx, store)
	l.RecordLevelResult(ctx, "cars", "1", 30, 100)

	store.failSet = true
	l.RecordLevelResult(ctx, "cars", "1", 90, 100)
	if !errors.Is(l.Degraded(), errDiskGone) {
		t.Fatalf("expected degraded mode, got %v", l.Degraded())
	}
	if got, _ := l.Level("cars", "1"); got.Score != 90 {
		t.Fatalf("expected in-memory progress to continue, got %+v", got)
	}

	store.failSet = false
	l.RecordLevelResult(ctx, "cars", "1", 95, 100)
	reloaded := Load(ctx, store)
	if got, _ := reloaded.Level("cars", "1"); got.Score != 30 {
		t.Fatalf("expected stored progress untouched after degradation, got %+v", got)
	}
}

func TestReadFailureStartsEmptyWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: kv.NewMemory()}
	_ = kv.SetJSON(ctx, store.Memory, KeyTotalScore, 500)
	store.failGet = true

	l := Load(ctx, store)
	if l.Degraded() == nil {
		t.Fatalf("expected degraded mode")
	}
	l.RecordLevelResult(ctx, "cars", "1", 10, 100)

	var total int
	_, _ = kv.GetJSON(ctx, store.Memory, KeyTotalScore, &total)
	if total != 500 {
		t.Fatalf("expected persisted total preserved, got %d", total)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	var got []Snapshot
	cancel := l.Subscribe(func(s Snapshot) { got = append(got, s) })
	l.RecordLevelResult(ctx, "cars", "1", 10, 100)
	l.ToggleFavorite(ctx, "cars", "q1")
	cancel()
	l.RecordRunStats(ctx, 1, 1)

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if got[0].TotalScore != 10 || len(got[1].Favorites) != 1 {
		t.Fatalf("unexpected snapshots: %+v", got)
	}
}

func TestLegacyMistakesReadFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: kv.NewMemory(), failKey: KeyLegacyMistakes}
	_ = store.Memory.Set(ctx, KeyLegacyMistakes, []byte(`["q1"]`))

	l := Load(ctx, store)
	if !errors.Is(l.Degraded(), errDiskGone) {
		t.Fatalf("expected degraded mode, got %v", l.Degraded())
	}
	l.MergeMistakes(ctx, "cars", []string{"q9"})
	if _, ok, _ := store.Memory.Get(ctx, KeyMistakes); ok {
		t.Fatalf("expected no versioned mistakes written while degraded")
	}
	if _, ok, _ := store.Memory.Get(ctx, KeyLegacyMistakes); !ok {
		t.Fatalf("legacy key must survive a failed read")
	}
}

func TestSubscribeDeliversInVersionOrder(t *testing.T) {
	ctx := context.Background()
	l := Load(ctx, kv.NewMemory())

	var mu sync.Mutex
	var versions []uint64
	l.Subscribe(func(s Snapshot) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RecordRunStats(ctx, 1, 1)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("snapshots delivered out of order: %v", versions)
		}
	}
	if len(versions) == 0 || versions[len(versions)-1] != l.Snapshot().Version {
		t.Fatalf("expected the latest snapshot delivered, got %v", versions)
	}
}
