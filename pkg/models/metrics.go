package models

import "time"

// MetricsSnapshot is a point-in-time copy of a gateway's counters.
type MetricsSnapshot struct {
	Requests       int64            `json:"requests"`
	Failures       int64            `json:"failures"`
	AvgLatencyMs   float64          `json:"avgLatency"`
	SuccessRate    float64          `json:"successRate"`
	UptimeMs       int64            `json:"uptime"`
	LastUpdate     time.Time        `json:"lastUpdate"`
	FailureReasons map[string]int64 `json:"failureReasons"`
}

// RateLimitStatus reports the current window of a rate-limited route.
type RateLimitStatus struct {
	Route       string    `json:"route"`
	Capacity    int       `json:"capacity"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
	ResetsAt    time.Time `json:"resets_at"`
}
