package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/askgate/pkg/models"
)

// formatMetrics formats gateway metrics as a text table.
func formatMetrics(gateways []MetricsSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %9s %9s %9s %12s %12s\n",
		"Route", "Requests", "Failures", "Success%", "Avg Latency", "Rate Window")
	b.WriteString(strings.Repeat("-", 64) + "\n")
	for _, g := range gateways {
		m := g.Metrics()
		window := "-"
		if st, ok := g.RateLimit(); ok {
			window = fmt.Sprintf("%d/%d", st.Used, st.Capacity)
		}
		fmt.Fprintf(&b, "%-8s %9d %9d %8.1f%% %10.0fms %12s\n",
			g.Route(), m.Requests, m.Failures, m.SuccessRate*100, m.AvgLatencyMs, window)
		for reason, n := range m.FailureReasons {
			fmt.Fprintf(&b, "  %-20s %d\n", reason, n)
		}
	}
	return b.String()
}

// formatSummary formats usage summaries as a text table.
func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %9s %9s %10s %10s %12s\n",
		"Route", "Requests", "Success", "Cache Hits", "Fallbacks", "Avg Latency")
	b.WriteString(strings.Repeat("-", 63) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-8s %9d %9d %10d %10d %10.0fms\n",
			r.Route, r.RequestCount, r.Successes, r.CacheHits, r.Fallbacks, r.AvgLatencyMs)
	}
	return b.String()
}

// formatFailures formats failure counts as a text table.
func formatFailures(rows []models.FailureCount) string {
	if len(rows) == 0 {
		return "No failures recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-22s %8s\n", "Route", "Reason", "Count")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-8s %-22s %8d\n", r.Route, r.Reason, r.Count)
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:   %d\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit Rate:  %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Evictions, hitRate)
}
