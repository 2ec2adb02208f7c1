package models

import "time"

// Source tags for answers produced outside a provider call.
const (
	SourceFallback = "fallback"
	SourceTimeout  = "timeout"
)

// Answer is the only value a gateway ever returns to its caller.
// Methods return modified copies; an Answer is never changed in place.
type Answer struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	Cached     bool      `json:"cached"`
	Warning    string    `json:"warning,omitempty"`
}

// WithCached returns a copy of a with the cached flag set.
func (a Answer) WithCached() Answer {
	a.Cached = true
	return a
}

// WithWarning returns a copy of a carrying the given warning.
func (a Answer) WithWarning(warning string) Answer {
	a.Warning = warning
	return a
}

// Placeholder builds a synthetic low-confidence answer for callers that
// must always have something renderable.
func Placeholder(text, source, warning string, now time.Time) Answer {
	return Answer{
		Text:       text,
		Confidence: 0.1,
		Source:     source,
		Timestamp:  now,
		Warning:    warning,
	}
}
