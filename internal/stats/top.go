package stats

import (
	"sort"

	"github.com/verte-zerg/factopia/internal/model"
)

// CategoryCount pairs a category with a record count.
type CategoryCount struct {
	CategoryID string
	Count      int
}

// TopCategoriesByMistakes returns up to n categories with the most open
// mistakes.
func TopCategoriesByMistakes(mistakes []model.MistakeRecord, n int) []CategoryCount {
	if n <= 0 || len(mistakes) == 0 {
		return nil
	}
	counts := map[string]int{}
	for _, m := range mistakes {
		counts[m.CategoryID]++
	}
	items := make([]CategoryCount, 0, len(counts))
	for cat, c := range counts {
		items = append(items, CategoryCount{CategoryID: cat, Count: c})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].CategoryID < items[j].CategoryID
		}
		return items[i].Count > items[j].Count
	})
	return items[:min(n, len(items))]
}
