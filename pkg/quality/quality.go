// Package quality decides whether a provider payload is a usable answer.
// An HTTP-successful response that fails any rule counts as a failed attempt.
package quality

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

// Defaults for Rules.
const (
	DefaultMinLength     = 20
	DefaultMinConfidence = 0.6
	DefaultMaxAge        = 10 * time.Second

	// DefaultConfidence is assigned to answers whose provider reports no score.
	DefaultConfidence = 0.9
)

// DefaultGenericPhrases are hedging or non-answers rejected by the
// default classifier.
var DefaultGenericPhrases = []string{
	"i don't know",
	"i do not know",
	"i cannot provide",
	"i can't provide",
	"i'm not sure",
	"i am not sure",
	"unable to provide",
	"i don't have access",
	"i do not have access",
	"i cannot answer",
	"i can't answer",
	"i'm unable to",
	"as an ai",
	"no information available",
	"i cannot help with",
}

// Rules are the tunable quality thresholds.
type Rules struct {
	MinLength     int
	MinConfidence float64
	MaxAge        time.Duration
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		MinLength:     DefaultMinLength,
		MinConfidence: DefaultMinConfidence,
		MaxAge:        DefaultMaxAge,
	}
}

// Classifier reports whether text is a generic, low-value answer.
type Classifier func(text string) bool

// PhraseClassifier returns a Classifier matching any of phrases anywhere in
// the lowercased text.
func PhraseClassifier(phrases []string) Classifier {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	// Typographic apostrophes are folded so "I don’t know" matches too.
	fold := strings.NewReplacer("’", "'", "‘", "'")
	return func(text string) bool {
		t := fold.Replace(strings.ToLower(text))
		for _, p := range lowered {
			if strings.Contains(t, p) {
				return true
			}
		}
		return false
	}
}

// Validator applies Rules to candidates.
type Validator struct {
	rules     Rules
	isGeneric Classifier
	now       func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClassifier replaces the generic-phrase classifier.
func WithClassifier(c Classifier) Option {
	return func(v *Validator) { v.isGeneric = c }
}

// WithClock sets the time source used by the freshness check.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator. A zero MinLength or MinConfidence disables that
// check; negative values and a non-positive MaxAge take their defaults.
func New(rules Rules, opts ...Option) *Validator {
	if rules.MinLength < 0 {
		rules.MinLength = DefaultMinLength
	}
	if rules.MinConfidence < 0 {
		rules.MinConfidence = DefaultMinConfidence
	}
	if rules.MaxAge <= 0 {
		rules.MaxAge = DefaultMaxAge
	}
	v := &Validator{
		rules:     rules,
		isGeneric: PhraseClassifier(DefaultGenericPhrases),
		now:       time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate runs the checks in order and stops at the first failure.
func (v *Validator) Validate(c models.Candidate) (models.Answer, error) {
	if !c.HasText {
		return models.Answer{}, apierr.Validation(apierr.ReasonMalformed, "Malformed response: missing answer field")
	}
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return models.Answer{}, apierr.Validation(apierr.ReasonMalformed, "Malformed response: empty answer")
	}
	if n := utf8.RuneCountInString(text); n < v.rules.MinLength {
		return models.Answer{}, apierr.Validation(apierr.ReasonTooShort, "Answer too short: %d chars", n)
	}

	confidence := DefaultConfidence
	if c.Confidence != nil {
		if *c.Confidence < v.rules.MinConfidence {
			return models.Answer{}, apierr.Validation(apierr.ReasonLowConfidence, "Low confidence: %.2f", *c.Confidence)
		}
		confidence = min(*c.Confidence, 1)
	}

	now := v.now()
	ts := now
	if c.Timestamp != nil {
		if age := now.Sub(*c.Timestamp); age > v.rules.MaxAge {
			return models.Answer{}, apierr.Validation(apierr.ReasonStale, "Stale answer: %s old", age.Round(time.Millisecond))
		}
		ts = *c.Timestamp
	}

	if v.isGeneric != nil && v.isGeneric(text) {
		return models.Answer{}, apierr.Validation(apierr.ReasonGeneric, "Generic response detected")
	}

	return models.Answer{
		Text:       text,
		Confidence: confidence,
		Source:     c.Source,
		Timestamp:  ts,
	}, nil
}
