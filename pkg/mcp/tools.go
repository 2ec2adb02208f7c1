package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pario-ai/askgate/pkg/apierr"
)

type askResult struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Cached     bool    `json:"cached"`
	Warning    string  `json:"warning,omitempty"`
}

func handleAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return errorResult("question is required"), nil
		}
		if deps.Asker == nil {
			return errorResult("no gateways configured"), nil
		}

		answer, err := deps.Asker.Generate(ctx, question)
		if err != nil && apierr.KindOf(err) != apierr.KindTimeout {
			return errorResult(fmt.Sprintf("ask failed: %v", err)), nil
		}

		b, merr := json.Marshal(askResult{
			Answer:     answer.Text,
			Confidence: answer.Confidence,
			Source:     answer.Source,
			Cached:     answer.Cached,
			Warning:    answer.Warning,
		})
		if merr != nil {
			return errorResult(fmt.Sprintf("failed to marshal answer: %v", merr)), nil
		}
		return textResult(string(b)), nil
	}
}

func handleGatewayMetrics(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		route := req.GetString("route", "")
		var matched []MetricsSource
		for _, g := range deps.Gateways {
			if route == "" || g.Route() == route {
				matched = append(matched, g)
			}
		}
		if len(matched) == 0 {
			return errorResult(fmt.Sprintf("unknown route %q", route)), nil
		}
		return textResult(formatMetrics(matched)), nil
	}
}

func handleUsageSummary(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Usage == nil {
			return errorResult("usage logging is disabled"), nil
		}
		route := req.GetString("route", "")
		hours := req.GetInt("hours", 24)
		if hours <= 0 {
			hours = 24
		}
		since := time.Now().Add(-time.Duration(hours) * time.Hour)

		sums, err := deps.Usage.Summary(ctx, route, since)
		if err != nil {
			return errorResult(fmt.Sprintf("summary failed: %v", err)), nil
		}
		failures, err := deps.Usage.FailureCounts(ctx, route, since)
		if err != nil {
			return errorResult(fmt.Sprintf("failure counts failed: %v", err)), nil
		}
		return textResult(formatSummary(sums) + "\n" + formatFailures(failures)), nil
	}
}

func handleCacheStats(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Cache == nil {
			return errorResult("cache is disabled"), nil
		}
		stats, err := deps.Cache.Stats()
		if err != nil {
			return errorResult(fmt.Sprintf("cache stats failed: %v", err)), nil
		}
		return textResult(formatCacheStats(stats)), nil
	}
}
