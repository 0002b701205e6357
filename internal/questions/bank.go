// Package questions loads categories and question packs from a data directory.
package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/factopia/internal/logger"
	"github.com/verte-zerg/factopia/internal/model"
)

const categoriesFile = "categories"

var extensions = []string{".json", ".yaml", ".yml"}

// Bank serves categories and questions. Loaded data is cached for the life
// of the Bank; failed loads are retried on the next call.
type Bank struct {
	dir string
	log *logger.Logger
	sf  singleflight.Group

	mu         sync.RWMutex
	categories []model.Category
	questions  map[string][]model.Question
	galleries  map[string][]model.GalleryItem
}

// NewBank returns a Bank reading from dir.
func NewBank(dir string, log *logger.Logger) *Bank {
	if log == nil {
		log = logger.Nop()
	}
	return &Bank{
		dir:       dir,
		log:       log,
		questions: make(map[string][]model.Question),
		galleries: make(map[string][]model.GalleryItem),
	}
}

// Dir returns the data directory.
func (b *Bank) Dir() string {
	return b.dir
}

// Categories returns every category, or nil when the index is missing or
// unreadable.
func (b *Bank) Categories(ctx context.Context) []model.Category {
	b.mu.RLock()
	cached := b.categories
	b.mu.RUnlock()
	if cached != nil {
		return cached
	}

	result, err, _ := b.sf.Do("categories", func() (interface{}, error) {
		var cats []model.Category
		if err := b.decode(ctx, categoriesFile, &cats); err != nil {
			return nil, err
		}
		if cats == nil {
			cats = []model.Category{}
		}
		b.mu.Lock()
		b.categories = cats
		b.mu.Unlock()
		return cats, nil
	})
	if err != nil {
		b.log.Warn("failed to load categories", "dir", b.dir, "error", err)
		return nil
	}
	return result.([]model.Category)
}

// Category looks up a category by id.
func (b *Bank) Category(ctx context.Context, id string) (model.Category, bool) {
	for _, c := range b.Categories(ctx) {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

// Groups returns the group ids used by categories in index order. Categories
// without a group are not counted.
func (b *Bank) Groups(ctx context.Context) []string {
	var groups []string
	seen := map[string]struct{}{}
	for _, c := range b.Categories(ctx) {
		if c.GroupID == "" {
			continue
		}
		if _, ok := seen[c.GroupID]; ok {
			continue
		}
		seen[c.GroupID] = struct{}{}
		groups = append(groups, c.GroupID)
	}
	return groups
}

// CategoriesInGroup returns the categories of one group in index order.
func (b *Bank) CategoriesInGroup(ctx context.Context, groupID string) []model.Category {
	var out []model.Category
	for _, c := range b.Categories(ctx) {
		if c.GroupID == groupID {
			out = append(out, c)
		}
	}
	return out
}

// Level looks up a level inside a category and reports its position.
func (b *Bank) Level(ctx context.Context, categoryID, levelID string) (model.Level, int, bool) {
	cat, ok := b.Category(ctx, categoryID)
	if !ok {
		return model.Level{}, -1, false
	}
	for i, lvl := range cat.Levels {
		if lvl.ID == levelID {
			return lvl, i, true
		}
	}
	return model.Level{}, -1, false
}

// NextLevel returns the id of the level after levelID, or "" when levelID is
// the last one or unknown.
func (b *Bank) NextLevel(ctx context.Context, categoryID, levelID string) string {
	cat, ok := b.Category(ctx, categoryID)
	if !ok {
		return ""
	}
	_, idx, ok := b.Level(ctx, categoryID, levelID)
	if !ok || idx+1 >= len(cat.Levels) {
		return ""
	}
	return cat.Levels[idx+1].ID
}

// QuestionsByLevel resolves a level's question ids in level order. Unknown
// ids are skipped.
func (b *Bank) QuestionsByLevel(ctx context.Context, categoryID, levelID string) []model.Question {
	lvl, _, ok := b.Level(ctx, categoryID, levelID)
	if !ok {
		b.log.Warn("unknown level", "category", categoryID, "level", levelID)
		return nil
	}
	return b.QuestionsByIDs(ctx, categoryID, lvl.QuestionIDs)
}

// QuestionsByIDs resolves ids against a category's question pack, keeping
// the given order and skipping unknown ids.
func (b *Bank) QuestionsByIDs(ctx context.Context, categoryID string, ids []model.ID) []model.Question {
	all := b.CategoryQuestions(ctx, categoryID)
	if len(all) == 0 {
		return nil
	}
	index := make(map[model.ID]int, len(all))
	for i, q := range all {
		index[q.ID] = i
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if i, ok := index[id]; ok {
			out = append(out, all[i])
		} else {
			b.log.Debug("skipping unknown question", "category", categoryID, "question", string(id))
		}
	}
	return out
}

// Question looks up a single question.
func (b *Bank) Question(ctx context.Context, categoryID, questionID string) (model.Question, bool) {
	for _, q := range b.CategoryQuestions(ctx, categoryID) {
		if string(q.ID) == questionID {
			return q, true
		}
	}
	return model.Question{}, false
}

// CategoryQuestions returns the full question pack for a category.
func (b *Bank) CategoryQuestions(ctx context.Context, categoryID string) []model.Question {
	b.mu.RLock()
	cached, ok := b.questions[categoryID]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	result, err, _ := b.sf.Do("questions/"+categoryID, func() (interface{}, error) {
		b.mu.RLock()
		cached, ok := b.questions[categoryID]
		b.mu.RUnlock()
		if ok {
			return cached, nil
		}
		var qs []model.Question
		if err := b.decode(ctx, filepath.Join("questions", categoryID), &qs); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.questions[categoryID] = qs
		b.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		b.log.Warn("failed to load questions", "category", categoryID, "error", err)
		return nil
	}
	return result.([]model.Question)
}

// Gallery returns the fact cards of a category, or nil when it has none.
func (b *Bank) Gallery(ctx context.Context, categoryID string) []model.GalleryItem {
	b.mu.RLock()
	cached, ok := b.galleries[categoryID]
	b.mu.RUnlock()
	if ok {
		return cached
	}

	result, err, _ := b.sf.Do("gallery/"+categoryID, func() (interface{}, error) {
		var items []model.GalleryItem
		if err := b.decode(ctx, filepath.Join("gallery", categoryID), &items); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.galleries[categoryID] = items
		b.mu.Unlock()
		return items, nil
	})
	if err != nil {
		b.log.Warn("failed to load gallery", "category", categoryID, "error", err)
		return nil
	}
	return result.([]model.GalleryItem)
}

// decode reads base plus the first existing extension and decodes it.
func (b *Bank) decode(ctx context.Context, base string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, ext := range extensions {
		path := filepath.Join(b.dir, base+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if ext == ".json" {
			err = json.Unmarshal(data, dst)
		} else {
			err = yaml.Unmarshal(data, dst)
		}
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("%s not found in %s: %w", base, b.dir, fs.ErrNotExist)
}
