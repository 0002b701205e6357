// Package progress keeps the durable per-device progress of a player:
// level bests, lifetime totals, the mistake book and favorites.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/verte-zerg/factopia/internal/kv"
	"github.com/verte-zerg/factopia/internal/logger"
	"github.com/verte-zerg/factopia/internal/model"
)

// DefaultPassAccuracy is the accuracy a run needs to unlock the next level.
const DefaultPassAccuracy = 60

// Snapshot is a point-in-time copy of the ledger.
type Snapshot struct {
	// Version grows with every change; a larger Version is a newer state.
	Version    uint64
	Levels     map[string]model.LevelProgress
	TotalScore int
	Stats      model.AggregateStats
	Mistakes   []model.MistakeRecord
	Favorites  []model.FavoriteRecord
}

// Ledger is the process-wide progress state. All reads and mutations are
// serialised; every mutation is written through to the store before the
// call returns.
type Ledger struct {
	store        kv.Store
	log          *logger.Logger
	now          func() time.Time
	passAccuracy int

	mu         sync.Mutex
	levels     map[string]model.LevelProgress
	totalScore int
	stats      model.AggregateStats
	mistakes   []model.MistakeRecord
	favorites  []model.FavoriteRecord
	degraded   error
	version    uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	deliverMu sync.Mutex
	delivered uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithPassAccuracy sets the accuracy needed to unlock the next level.
func WithPassAccuracy(pct int) Option {
	return func(l *Ledger) {
		if pct >= 0 && pct <= 100 {
			l.passAccuracy = pct
		}
	}
}

// Load reads the ledger from store. It never fails: if the store cannot be
// read the ledger runs in memory for this process and Degraded reports why.
func Load(ctx context.Context, store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		log:          logger.Nop(),
		now:          time.Now,
		passAccuracy: DefaultPassAccuracy,
		levels:       map[string]model.LevelProgress{},
		subs:         map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.load(ctx); err != nil {
		l.levels = map[string]model.LevelProgress{}
		l.totalScore = 0
		l.stats = model.AggregateStats{}
		l.mistakes = nil
		l.favorites = nil
		l.degrade(err)
	}
	return l
}

func (l *Ledger) load(ctx context.Context) error {
	if _, err := kv.GetJSON(ctx, l.store, KeyLevels, &l.levels); err != nil {
		return err
	}
	if l.levels == nil {
		l.levels = map[string]model.LevelProgress{}
	}
	if _, err := kv.GetJSON(ctx, l.store, KeyTotalScore, &l.totalScore); err != nil {
		return err
	}
	if _, err := kv.GetJSON(ctx, l.store, KeyTotalAnswered, &l.stats.TotalAnswered); err != nil {
		return err
	}
	if _, err := kv.GetJSON(ctx, l.store, KeyTotalCorrect, &l.stats.TotalCorrect); err != nil {
		return err
	}
	ok, err := kv.GetJSON(ctx, l.store, KeyMistakes, &l.mistakes)
	if err != nil {
		return err
	}
	if !ok {
		if err := l.migrateLegacyMistakes(ctx); err != nil {
			return err
		}
	}
	if _, err := kv.GetJSON(ctx, l.store, KeyFavorites, &l.favorites); err != nil {
		return err
	}
	return nil
}

// migrateLegacyMistakes converts the original plain id list into records.
// Legacy entries carry no category, so they keep an empty CategoryID. Ids may
// be stored as strings or numbers. A read error is returned; a value that does
// not decode is left in place.
func (l *Ledger) migrateLegacyMistakes(ctx context.Context) error {
	raw, ok, err := l.store.Get(ctx, KeyLegacyMistakes)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", KeyLegacyMistakes, err)
	}
	if !ok {
		return nil
	}
	var ids []model.ID
	if err := json.Unmarshal(raw, &ids); err != nil {
		l.log.Warn("legacy mistake list has an unexpected shape; leaving it untouched", "key", KeyLegacyMistakes, "error", err)
		return nil
	}
	legacy := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		legacy = append(legacy, string(id))
	}
	ts := l.now().UnixMilli()
	seen := make(map[string]struct{}, len(legacy))
	records := make([]model.MistakeRecord, 0, len(legacy))
	for _, id := range legacy {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, model.MistakeRecord{QuestionID: id, Timestamp: ts})
	}
	if err := kv.SetJSON(ctx, l.store, KeyMistakes, records); err != nil {
		return fmt.Errorf("failed to migrate mistakes: %w", err)
	}
	if err := l.store.Delete(ctx, KeyLegacyMistakes); err != nil {
		return fmt.Errorf("failed to remove legacy mistakes: %w", err)
	}
	l.mistakes = records
	l.log.Info("migrated legacy mistake list", "count", len(records))
	return nil
}

// Degraded returns the storage error that switched the ledger to
// memory-only mode, or nil.
func (l *Ledger) Degraded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

func (l *Ledger) degrade(err error) {
	if l.degraded != nil {
		return
	}
	l.degraded = err
	l.log.Warn("progress storage unavailable; keeping progress in memory for this session", "error", err)
}

// RecordLevelResult stores score/accuracy as the level best when there is no
// record yet or score beats it, and always adds score to the total score.
func (l *Ledger) RecordLevelResult(ctx context.Context, categoryID, levelID string, score, accuracy int) {
	l.mu.Lock()
	keys := l.recordLevelResultLocked(categoryID, levelID, score, accuracy)
	l.persistLocked(ctx, keys...)
	snap := l.changedLocked()
	l.mu.Unlock()
	l.notify(snap)
}

func (l *Ledger) recordLevelResultLocked(categoryID, levelID string, score, accuracy int) []string {
	if score < 0 || accuracy < 0 || accuracy > 100 {
		l.log.Warn("ignoring invalid level result", "category", categoryID, "level", levelID, "score", score, "accuracy", accuracy)
		return nil
	}
	key := LevelKey(categoryID, levelID)
	current, ok := l.levels[key]
	if !ok || score > current.Score {
		l.levels[key] = model.LevelProgress{Score: score, Accuracy: accuracy, Unlocked: true}
	} else if !current.Unlocked {
		current.Unlocked = true
		l.levels[key] = current
	}
	l.totalScore += score
	return []string{KeyLevels, KeyTotalScore}
}

// UnlockLevel creates an empty unlocked record for the level if none exists.
func (l *Ledger) UnlockLevel(ctx context.Context, categoryID, levelID string) {
	l.mu.Lock()
	keys := l.unlockLevelLocked(categoryID, levelID)
	l.persistLocked(ctx, keys...)
	snap := l.changedLocked()
	l.mu.Unlock()
	if len(keys) > 0 {
		l.notify(snap)
	}
}

func (l *Ledger) unlockLevelLocked(categoryID, levelID string) []string {
	key := LevelKey(categoryID, levelID)
	if _, ok := l.levels[key]; ok {
		return nil
	}
	l.levels[key] = model.LevelProgress{Unlocked: true}
	return []string{KeyLevels}
}

// MergeMistakes records the given questions as the most recent mistakes of
// the category. Each question keeps a single record, stamped now and moved
// to the front.
func (l *Ledger) MergeMistakes(ctx context.Context, categoryID string, questionIDs []string) {
	if len(questionIDs) == 0 {
		return
	}
	l.mu.Lock()
	keys := l.mergeMistakesLocked(categoryID, questionIDs)
	l.persistLocked(ctx, keys...)
	snap := l.changedLocked()
	l.mu.Unlock()
	l.notify(snap)
}

func (l *Ledger) mergeMistakesLocked(categoryID string, questionIDs []string) []string {
	if len(questionIDs) == 0 {
		return nil
	}
	ts := l.now().UnixMilli()
	incoming := make(map[string]struct{}, len(questionIDs))
	fresh := make([]model.MistakeRecord, 0, len(questionIDs)+len(l.mistakes))
	for _, id := range questionIDs {
		if _, dup := incoming[id]; dup {
			continue
		}
		incoming[id] = struct{}{}
		fresh = append(fresh, model.MistakeRecord{CategoryID: categoryID, QuestionID: id, Timestamp: ts})
	}
	for _, rec := range l.mistakes {
		if rec.CategoryID == categoryID {
			if _, replaced := incoming[rec.QuestionID]; replaced {
				continue
			}
		}
		fresh = append(fresh, rec)
	}
	l.mistakes = fresh
	return []string{KeyMistakes}
}

// ClearMistake removes the mistake record for the question, if any.
func (l *Ledger) ClearMistake(ctx context.Context, categoryID, questionID string) {
	l.mu.Lock()
	idx := indexOf(l.mistakes, categoryID, questionID)
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	l.mistakes = removeAt(l.mistakes, idx)
	l.persistLocked(ctx, KeyMistakes)
	snap := l.changedLocked()
	l.mu.Unlock()
	l.notify(snap)
}

// ToggleFavorite flips the favorite state of the question and returns the
// new state.
func (l *Ledger) ToggleFavorite(ctx context.Context, categoryID, questionID string) bool {
	l.mu.Lock()
	var favorite bool
	if idx := indexOf(l.favorites, categoryID, questionID); idx >= 0 {
		l.favorites = removeAt(l.favorites, idx)
	} else {
		rec := model.FavoriteRecord{CategoryID: categoryID, QuestionID: questionID, Timestamp: l.now().UnixMilli()}
		l.favorites = append([]model.FavoriteRecord{rec}, l.favorites...)
		favorite = true
	}
	l.persistLocked(ctx, KeyFavorites)
	snap := l.changedLocked()
	l.mu.Unlock()
	l.notify(snap)
	return favorite
}

// IsFavorite reports whether the question is a favorite.
func (l *Ledger) IsFavorite(categoryID, questionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return indexOf(l.favorites, categoryID, questionID) >= 0
}

// RecordRunStats adds a finished run to the lifetime counters. Negative
// counts are ignored.
func (l *Ledger) RecordRunStats(ctx context.Context, answered, correct int) {
	l.mu.Lock()
	keys := l.recordRunStatsLocked(answered, correct)
	l.persistLocked(ctx, keys...)
	snap := l.changedLocked()
	l.mu.Unlock()
	if len(keys) > 0 {
		l.notify(snap)
	}
}

func (l *Ledger) recordRunStatsLocked(answered, correct int) []string {
	if answered < 0 || correct < 0 {
		l.log.Warn("ignoring negative run stats", "answered", answered, "correct", correct)
		return nil
	}
	l.stats.TotalAnswered += answered
	l.stats.TotalCorrect += correct
	return []string{KeyTotalAnswered, KeyTotalCorrect}
}

// CompleteRun merges a finished run: level best, total score, mistakes and
// counters. When nextLevelID is set and the run's accuracy reaches the pass
// threshold the next level is unlocked; the return value reports that.
func (l *Ledger) CompleteRun(ctx context.Context, categoryID, levelID, nextLevelID string, res model.RunResult) bool {
	l.mu.Lock()
	var keys []string
	keys = append(keys, l.recordLevelResultLocked(categoryID, levelID, res.Score, res.Accuracy)...)
	keys = append(keys, l.mergeMistakesLocked(categoryID, res.Mistakes)...)
	keys = append(keys, l.recordRunStatsLocked(res.Answered, res.Correct)...)
	unlocked := false
	if nextLevelID != "" && res.Accuracy >= l.passAccuracy {
		keys = append(keys, l.unlockLevelLocked(categoryID, nextLevelID)...)
		unlocked = true
	}
	l.persistLocked(ctx, keys...)
	snap := l.changedLocked()
	l.mu.Unlock()
	l.notify(snap)
	return unlocked
}

// PassAccuracy returns the unlock threshold in percent.
func (l *Ledger) PassAccuracy() int {
	return l.passAccuracy
}

// Level returns the stored progress for a level.
func (l *Ledger) Level(categoryID, levelID string) (model.LevelProgress, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.levels[LevelKey(categoryID, levelID)]
	return p, ok
}

// Levels returns a copy of every stored level record keyed by LevelKey.
func (l *Ledger) Levels() map[string]model.LevelProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]model.LevelProgress, len(l.levels))
	for k, v := range l.levels {
		out[k] = v
	}
	return out
}

// IsUnlocked reports whether a level may be played. The first level of a
// category is always open.
func (l *Ledger) IsUnlocked(categoryID, levelID string, index int) bool {
	if index == 0 {
		return true
	}
	p, ok := l.Level(categoryID, levelID)
	return ok && p.Unlocked
}

// TotalScore returns the lifetime total of all run scores.
func (l *Ledger) TotalScore() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalScore
}

// Stats returns the lifetime answer counters.
func (l *Ledger) Stats() model.AggregateStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Mistakes returns all mistake records, most recent first.
func (l *Ledger) Mistakes() []model.MistakeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneRecords(l.mistakes)
}

// MistakesFor returns the mistake records of one category.
func (l *Ledger) MistakesFor(categoryID string) []model.MistakeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.MistakeRecord
	for _, rec := range l.mistakes {
		if rec.CategoryID == categoryID {
			out = append(out, rec)
		}
	}
	return out
}

// Favorites returns all favorite records, most recent first.
func (l *Ledger) Favorites() []model.FavoriteRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneRecords(l.favorites)
}

// Snapshot returns a copy of the whole ledger.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) changedLocked() Snapshot {
	l.version++
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	levels := make(map[string]model.LevelProgress, len(l.levels))
	for k, v := range l.levels {
		levels[k] = v
	}
	return Snapshot{
		Version:    l.version,
		Levels:     levels,
		TotalScore: l.totalScore,
		Stats:      l.stats,
		Mistakes:   cloneRecords(l.mistakes),
		Favorites:  cloneRecords(l.favorites),
	}
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes the subscription. Snapshots reach fn in Version
// order; one overtaken by a newer snapshot is dropped. fn runs outside the
// ledger lock and may read the ledger, but must not mutate it.
func (l *Ledger) Subscribe(fn func(Snapshot)) func() {
	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.subMu.Unlock()
	return func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}
}

func (l *Ledger) notify(snap Snapshot) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()
	if snap.Version <= l.delivered {
		return
	}
	l.delivered = snap.Version
	l.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// persistLocked writes the named keys. The first failure switches the ledger
// to memory-only mode; later writes are skipped so stored progress is never
// overwritten with a partial state.
func (l *Ledger) persistLocked(ctx context.Context, keys ...string) {
	if l.degraded != nil {
		return
	}
	written := map[string]struct{}{}
	for _, key := range keys {
		if _, ok := written[key]; ok {
			continue
		}
		written[key] = struct{}{}
		if err := kv.SetJSON(ctx, l.store, key, l.valueLocked(key)); err != nil {
			l.degrade(fmt.Errorf("failed to save %s: %w", key, err))
			return
		}
	}
}

func (l *Ledger) valueLocked(key string) any {
	switch key {
	case KeyLevels:
		return l.levels
	case KeyTotalScore:
		return l.totalScore
	case KeyTotalAnswered:
		return l.stats.TotalAnswered
	case KeyTotalCorrect:
		return l.stats.TotalCorrect
	case KeyMistakes:
		return nonNil(l.mistakes)
	case KeyFavorites:
		return nonNil(l.favorites)
	default:
		return nil
	}
}

func indexOf(records []model.Record, categoryID, questionID string) int {
	for i, rec := range records {
		if rec.Matches(categoryID, questionID) {
			return i
		}
	}
	return -1
}

func removeAt(records []model.Record, idx int) []model.Record {
	out := make([]model.Record, 0, len(records)-1)
	out = append(out, records[:idx]...)
	return append(out, records[idx+1:]...)
}

func cloneRecords(records []model.Record) []model.Record {
	if len(records) == 0 {
		return nil
	}
	out := make([]model.Record, len(records))
	copy(out, records)
	return out
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}
