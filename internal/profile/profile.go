package profile

import (
	"regexp"
	"strings"

	"github.com/hpungsan/willow/internal/errors"
)

// AgeBand is the age category a profile plays in.
type AgeBand string

const (
	AgeBand4to6   AgeBand = "4–6"
	AgeBand7to9   AgeBand = "7–9"
	AgeBand10to12 AgeBand = "10–12"
)

// DefaultAgeBand is used when no band is given.
const DefaultAgeBand = AgeBand4to6

// AgeBands lists the valid bands in display order.
var AgeBands = []AgeBand{AgeBand4to6, AgeBand7to9, AgeBand10to12}

// Profile is one player profile owned by a user.
type Profile struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	AgeBand     AgeBand `json:"age_mode"`
	CreatedAt   int64   `json:"created_at"` // unix milliseconds
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeDisplayName trims and collapses internal whitespace.
// Case is preserved.
func NormalizeDisplayName(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ParseAgeBand validates s as an age band. ASCII hyphens are accepted in
// place of the en dash; an empty string yields DefaultAgeBand.
func ParseAgeBand(s string) (AgeBand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAgeBand, nil
	}
	s = strings.ReplaceAll(s, "-", "–")
	for _, b := range AgeBands {
		if string(b) == s {
			return b, nil
		}
	}
	allowed := make([]string, len(AgeBands))
	for i, b := range AgeBands {
		allowed[i] = string(b)
	}
	return "", errors.NewInvalidOption("age_mode", s, allowed)
}
