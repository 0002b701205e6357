package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecordRef is returned for malformed category:question references.
var ErrInvalidRecordRef = errors.New("invalid record reference")

// ParseRecordRef splits "category:question" into its parts. The category
// may be empty for records migrated without one (":question").
func ParseRecordRef(ref string) (categoryID, questionID string, err error) {
	cat, q, ok := strings.Cut(strings.TrimSpace(ref), ":")
	if !ok || q == "" || strings.Contains(q, ":") {
		return "", "", fmt.Errorf("%w %q (want category:question)", ErrInvalidRecordRef, ref)
	}
	return cat, q, nil
}
