package models

import "time"

// Candidate is a parsed provider payload that has not passed quality
// checks yet. Confidence and Timestamp are nil when the provider omits them.
type Candidate struct {
	Text       string
	HasText    bool
	Confidence *float64
	Timestamp  *time.Time
	Source     string
}
