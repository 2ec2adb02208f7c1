package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

type fakeAsker struct {
	answer models.Answer
	err    error
	got    string
}

func (f *fakeAsker) Generate(_ context.Context, text string) (models.Answer, error) {
	f.got = text
	return f.answer, f.err
}

type fakeGateway struct {
	route   string
	metrics models.MetricsSnapshot
}

func (f *fakeGateway) Route() string                   { return f.route }
func (f *fakeGateway) Metrics() models.MetricsSnapshot { return f.metrics }
func (f *fakeGateway) RateLimit() (models.RateLimitStatus, bool) {
	return models.RateLimitStatus{Route: f.route, Capacity: 15, Used: 3, Remaining: 12}, true
}

type fakeUsage struct {
	sums     []models.UsageSummary
	failures []models.FailureCount
	route    string
}

func (f *fakeUsage) Summary(_ context.Context, route string, _ time.Time) ([]models.UsageSummary, error) {
	f.route = route
	return f.sums, nil
}

func (f *fakeUsage) FailureCounts(_ context.Context, _ string, _ time.Time) ([]models.FailureCount, error) {
	return f.failures, nil
}

type fakeCache struct {
	stats models.CacheStats
}

func (f *fakeCache) Stats() (models.CacheStats, error) { return f.stats, nil }

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected content, got none")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(Deps{})
	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.HandleMessage(context.Background(), msg)

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ask", "gateway_metrics", "usage_summary", "cache_stats"} {
		if !strings.Contains(string(b), `"name":"`+name+`"`) {
			t.Errorf("expected tool %q in tools/list, got %s", name, b)
		}
	}
}

func TestAsk(t *testing.T) {
	asker := &fakeAsker{answer: models.Answer{Text: "Paris is the capital of France.", Confidence: 0.9, Source: "chat"}}
	handler := handleAsk(Deps{Asker: asker})

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "What is the capital of France?",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}
	if asker.got != "What is the capital of France?" {
		t.Errorf("expected question forwarded, got %q", asker.got)
	}

	var out askResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "Paris is the capital of France." || out.Source != "chat" {
		t.Errorf("unexpected answer: %+v", out)
	}
}

func TestAskMissingQuestion(t *testing.T) {
	handler := handleAsk(Deps{Asker: &fakeAsker{}})
	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error result for missing question")
	}
}

func TestAskTimeoutReturnsPlaceholder(t *testing.T) {
	asker := &fakeAsker{
		answer: models.Placeholder("still thinking", models.SourceTimeout, "slow", time.Now()),
		err:    apierr.Timeout("timed out"),
	}
	result, err := handleAsk(Deps{Asker: asker})(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "hello there",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected placeholder answer, got error %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), `"source":"timeout"`) {
		t.Errorf("expected timeout source, got %s", toolText(t, result))
	}
}

func TestAskFailure(t *testing.T) {
	asker := &fakeAsker{err: apierr.Cancelled(errors.New("gone"))}
	result, err := handleAsk(Deps{Asker: asker})(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"question": "hello there",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error result")
	}
}

func TestGatewayMetrics(t *testing.T) {
	deps := Deps{Gateways: []MetricsSource{
		&fakeGateway{route: "chat", metrics: models.MetricsSnapshot{Requests: 10, Failures: 2, SuccessRate: 0.8, AvgLatencyMs: 120,
			FailureReasons: map[string]int64{"tooShort": 2}}},
		&fakeGateway{route: "live", metrics: models.MetricsSnapshot{Requests: 4}},
	}}

	result, err := handleGatewayMetrics(deps)(context.Background(), makeCallToolRequest("gateway_metrics", map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	text := toolText(t, result)
	for _, want := range []string{"chat", "live", "80.0%", "tooShort", "3/15"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}

	result, _ = handleGatewayMetrics(deps)(context.Background(), makeCallToolRequest("gateway_metrics", map[string]interface{}{
		"route": "live",
	}))
	if strings.Contains(toolText(t, result), "chat") {
		t.Error("expected route filter to exclude chat")
	}

	result, _ = handleGatewayMetrics(deps)(context.Background(), makeCallToolRequest("gateway_metrics", map[string]interface{}{
		"route": "nope",
	}))
	if !result.IsError {
		t.Error("expected error for unknown route")
	}
}

func TestUsageSummary(t *testing.T) {
	u := &fakeUsage{
		sums:     []models.UsageSummary{{Route: "chat", RequestCount: 5, Successes: 4, CacheHits: 1, Fallbacks: 1, AvgLatencyMs: 200}},
		failures: []models.FailureCount{{Route: "chat", Reason: "lowConfidence", Count: 1}},
	}
	result, err := handleUsageSummary(Deps{Usage: u})(context.Background(), makeCallToolRequest("usage_summary", map[string]interface{}{
		"route": "chat",
		"hours": float64(6),
	}))
	if err != nil {
		t.Fatal(err)
	}
	text := toolText(t, result)
	if !strings.Contains(text, "lowConfidence") || !strings.Contains(text, "chat") {
		t.Errorf("unexpected output:\n%s", text)
	}
	if u.route != "chat" {
		t.Errorf("expected route chat, got %q", u.route)
	}
}

func TestUsageSummaryDisabled(t *testing.T) {
	result, _ := handleUsageSummary(Deps{})(context.Background(), makeCallToolRequest("usage_summary", nil))
	if !result.IsError {
		t.Error("expected error when usage is disabled")
	}
}

func TestCacheStats(t *testing.T) {
	c := &fakeCache{stats: models.CacheStats{Entries: 3, Hits: 6, Misses: 2, Evictions: 1}}
	result, err := handleCacheStats(Deps{Cache: c})(context.Background(), makeCallToolRequest("cache_stats", nil))
	if err != nil {
		t.Fatal(err)
	}
	text := toolText(t, result)
	for _, want := range []string{"Entries:   3", "Evictions: 1", "75.0%"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestFormatSummaryEmpty(t *testing.T) {
	if got := formatSummary(nil); got != "No usage data found." {
		t.Errorf("expected empty message, got %q", got)
	}
	if got := formatFailures(nil); got != "No failures recorded." {
		t.Errorf("expected empty message, got %q", got)
	}
}
