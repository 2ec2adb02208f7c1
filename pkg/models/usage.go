package models

import "time"

// UsageRecord is one completed gateway request, as written to the usage log.
type UsageRecord struct {
	ID            int64     `json:"id"`
	RequestID     string    `json:"request_id"`
	Route         string    `json:"route"`
	QueryKey      string    `json:"query_key"`
	Source        string    `json:"source,omitempty"`
	Success       bool      `json:"success"`
	Cached        bool      `json:"cached"`
	Warning       string    `json:"warning,omitempty"`
	FailureKind   string    `json:"failure_kind,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Attempts      int       `json:"attempts"`
	LatencyMs     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// UsageSummary aggregates usage records per route.
type UsageSummary struct {
	Route        string  `json:"route"`
	RequestCount int     `json:"request_count"`
	Successes    int     `json:"successes"`
	CacheHits    int     `json:"cache_hits"`
	Fallbacks    int     `json:"fallbacks"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// FailureCount is a failure reason with its number of occurrences.
type FailureCount struct {
	Route  string `json:"route"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
