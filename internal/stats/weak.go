package stats

import "github.com/verte-zerg/factopia/internal/model"

// SelectReviewQuestions picks up to limit question ids from a category's
// mistakes, most recently missed first. A limit of zero selects all.
func SelectReviewQuestions(mistakes []model.MistakeRecord, categoryID string, limit int) []model.ID {
	var ids []model.ID
	seen := map[string]struct{}{}
	for _, m := range mistakes {
		if m.CategoryID != categoryID {
			continue
		}
		if _, ok := seen[m.QuestionID]; ok {
			continue
		}
		seen[m.QuestionID] = struct{}{}
		ids = append(ids, model.ID(m.QuestionID))
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids
}
