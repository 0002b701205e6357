// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// GameConfig defines play settings.
type GameConfig struct {
	DataDir      string
	CategoryID   string
	LevelID      string
	Shuffle      bool
	PassAccuracy int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	CategoryID  string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// LevelProgress is the best result stored for one category level.
type LevelProgress struct {
	Score    int  `json:"score"`
	Accuracy int  `json:"accuracy"`
	Unlocked bool `json:"unlocked"`
}

// Record references a question inside a category at a point in time.
// Timestamp is in Unix milliseconds.
type Record struct {
	CategoryID string `json:"categoryId"`
	QuestionID string `json:"questionId"`
	Timestamp  int64  `json:"timestamp"`
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Matches reports whether r refers to the given question.
func (r Record) Matches(categoryID, questionID string) bool {
	return r.CategoryID == categoryID && r.QuestionID == questionID
}

// MistakeRecord marks a question answered incorrectly and not yet cleared.
type MistakeRecord = Record

// FavoriteRecord marks a question the player starred.
type FavoriteRecord = Record

// AggregateStats holds lifetime answer counters.
type AggregateStats struct {
	TotalAnswered int `json:"totalAnswered"`
	TotalCorrect  int `json:"totalCorrect"`
}

// RunResult is the final state of a finished quiz run.
type RunResult struct {
	Score    int
	Accuracy int
	Answered int
	Correct  int
	Mistakes []string
}

// RunRecord is one completed run kept in the local history.
type RunRecord struct {
	ID         string
	CategoryID string
	LevelID    string
	Score      int
	Accuracy   int
	Answered   int
	Correct    int
	StartedAt  time.Time
	EndedAt    time.Time
}

// QuestionType selects how a question is presented.
type QuestionType string

// Question presentation types.
const (
	SingleImageToText QuestionType = "single_image_to_text"
	TrueFalseImage    QuestionType = "true_false_image"
	SingleTextToImage QuestionType = "single_text_to_image"
)

// ID is an identifier that source data may write as a string or a number.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(data))
	}
	*id = ID(n.String())
	return nil
}

// Answer is either an option value or a true/false verdict.
type Answer struct {
	Text   string
	Bool   bool
	IsBool bool
}

// UnmarshalJSON accepts a JSON string or boolean.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = Answer{Bool: b, IsBool: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("answer must be a string or boolean: %s", string(data))
	}
	*a = Answer{Text: s}
	return nil
}

// String renders the answer for display.
func (a Answer) String() string {
	if a.IsBool {
		return strconv.FormatBool(a.Bool)
	}
	return a.Text
}

// Question is one quiz item.
type Question struct {
	ID          ID           `json:"id" yaml:"id"`
	Type        QuestionType `json:"type" yaml:"type"`
	Prompt      string       `json:"prompt" yaml:"prompt"`
	Image       string       `json:"image,omitempty" yaml:"image,omitempty"`
	Options     []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Answer      Answer       `json:"answer" yaml:"answer"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Difficulty  int          `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// IsCorrect reports whether the chosen option matches the answer. For
// true/false questions choice is "true" or "false".
func (q Question) IsCorrect(choice string) bool {
	if q.Answer.IsBool {
		b, err := strconv.ParseBool(choice)
		return err == nil && b == q.Answer.Bool
	}
	return choice == q.Answer.Text
}

// Choices returns the selectable values for the question.
func (q Question) Choices() []string {
	if q.Type == TrueFalseImage || (q.Answer.IsBool && len(q.Options) == 0) {
		return []string{"true", "false"}
	}
	return q.Options
}

// Level is an ordered question set inside a category.
type Level struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	QuestionIDs []ID   `json:"questionIds" yaml:"questionIds"`
}

// Category groups levels of one topic.
type Category struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Icon    string  `json:"icon" yaml:"icon"`
	GroupID string  `json:"groupId,omitempty" yaml:"groupId,omitempty"`
	Levels  []Level `json:"levels" yaml:"levels"`
}

// GalleryItem is a browsable fact card attached to a category.
type GalleryItem struct {
	ID          ID     `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	Description string `json:"description" yaml:"description"`
}
