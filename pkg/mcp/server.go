// Package mcp exposes askgate over the Model Context Protocol.
package mcp

import (
	"context"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pario-ai/askgate/pkg/models"
)

// Asker answers a question through the full gateway chain.
type Asker interface {
	Generate(ctx context.Context, text string) (models.Answer, error)
}

// MetricsSource reports one gateway's counters.
type MetricsSource interface {
	Route() string
	Metrics() models.MetricsSnapshot
	RateLimit() (models.RateLimitStatus, bool)
}

// UsageReader queries the usage log.
type UsageReader interface {
	Summary(ctx context.Context, route string, since time.Time) ([]models.UsageSummary, error)
	FailureCounts(ctx context.Context, route string, since time.Time) ([]models.FailureCount, error)
}

// CacheStatter reports cache statistics.
type CacheStatter interface {
	Stats() (models.CacheStats, error)
}

// Deps holds the collaborators behind the tools. Usage and Cache are
// optional; their tools report an error when unset.
type Deps struct {
	Asker    Asker
	Gateways []MetricsSource
	Usage    UsageReader
	Cache    CacheStatter
	Version  string
}

// NewServer creates an MCP server with all askgate tools registered.
func NewServer(deps Deps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"askgate",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("askgate answers questions through resilient, quality-checked upstream providers."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question, falling back from the chat provider to live search."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		handleAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("gateway_metrics",
			mcp.WithDescription("Show request, failure and latency metrics for each gateway route."),
			mcp.WithString("route", mcp.Description("Filter by route: chat or live (optional)")),
		),
		handleGatewayMetrics(deps),
	)

	s.AddTool(
		mcp.NewTool("usage_summary",
			mcp.WithDescription("Summarize logged gateway requests and their failure reasons."),
			mcp.WithString("route", mcp.Description("Filter by route (optional)")),
			mcp.WithNumber("hours", mcp.Description("Look-back window in hours (default 24)")),
		),
		handleUsageSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_stats",
			mcp.WithDescription("Show answer cache hit/miss statistics."),
		),
		handleCacheStats(deps),
	)

	return s
}

// ServeStdio runs s over the given streams until ctx is cancelled.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
