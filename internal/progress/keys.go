package progress

// Storage keys. These names are part of the on-disk format and must not
// change between releases.
const (
	KeyLevels         = "factopia_levels"
	KeyTotalScore     = "factopia_total_score"
	KeyTotalAnswered  = "factopia_total_answered"
	KeyTotalCorrect   = "factopia_total_correct"
	KeyMistakes       = "factopia_mistakes_v2"
	KeyLegacyMistakes = "factopia_mistakes"
	KeyFavorites      = "factopia_favorites"
)

// LevelKey builds the map key for a category level.
func LevelKey(categoryID, levelID string) string {
	return categoryID + "_" + levelID
}
