package models

import "strings"

// Query is a single inbound question.
type Query struct {
	Text string `json:"text"`
	Key  string `json:"key"`
}

// NewQuery builds a Query from already validated text.
func NewQuery(text string) Query {
	return Query{Text: text, Key: NormalizeKey(text)}
}

// NormalizeKey lowercases, trims and collapses whitespace runs. It is
// idempotent and is used as the cache and single-flight key.
func NormalizeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
