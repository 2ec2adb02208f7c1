// Package input validates and normalizes raw question text before it
// reaches a gateway.
package input

import (
	"strings"
	"unicode/utf8"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

// DefaultMaxLength is the longest question accepted by any gateway.
const DefaultMaxLength = 1000

// Rules are the per-provider input limits.
type Rules struct {
	MinLength int
	MaxLength int
	Sanitize  bool
}

// Validate checks raw and returns the trimmed query. raw is typed any
// because it comes straight from a decoded JSON body.
func Validate(raw any, rules Rules) (models.Query, error) {
	text, ok := raw.(string)
	if !ok {
		return models.Query{}, apierr.InvalidInput("Invalid input: must be a string")
	}
	if rules.Sanitize {
		text = sanitize(text)
	}
	return check(strings.TrimSpace(text), rules)
}

// Sanitize is Validate with sanitizing forced on: angle brackets are
// stripped and whitespace runs collapse to single spaces.
func Sanitize(raw any, rules Rules) (models.Query, error) {
	rules.Sanitize = true
	return Validate(raw, rules)
}

func sanitize(text string) string {
	text = strings.NewReplacer("<", "", ">", "").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

func check(text string, rules Rules) (models.Query, error) {
	maxLen := rules.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return models.Query{}, apierr.InvalidInput("Invalid input: must not be empty")
	case n < rules.MinLength:
		return models.Query{}, apierr.InvalidInput("Invalid input: must be at least %d characters", rules.MinLength)
	case n > maxLen:
		return models.Query{}, apierr.InvalidInput("Invalid input: must be at most %d characters", maxLen)
	}
	return models.NewQuery(text), nil
}
