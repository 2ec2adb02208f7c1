package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/gateway"
	"github.com/pario-ai/askgate/pkg/models"
)

// RemoteGateway calls one route of a running askgate server.
type RemoteGateway struct {
	baseURL string
	route   string
	http    *http.Client
}

// NewRemoteGateway creates a RemoteGateway for route ("chat" or "live").
func NewRemoteGateway(baseURL, route string, httpClient *http.Client) *RemoteGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		route:   route,
		http:    httpClient,
	}
}

// Answer posts raw to the server and maps the reply back to an Answer or
// a classified error.
func (g *RemoteGateway) Answer(ctx context.Context, raw any) (models.Answer, error) {
	body, err := json.Marshal(models.AskRequest{Input: raw})
	if err != nil {
		return models.Answer{}, apierr.InvalidInput("Invalid input: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/"+g.route, bytes.NewReader(body))
	if err != nil {
		return models.Answer{}, apierr.Transport(g.route, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if id := gateway.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.Answer{}, apierr.Cancelled(ctx.Err())
		}
		return models.Answer{}, apierr.Transport(g.route, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Answer{}, apierr.Transport(g.route, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		if err := json.Unmarshal(data, &e); err != nil || e.Kind == "" {
			return models.Answer{}, apierr.Transport(g.route, fmt.Errorf("server returned %d", resp.StatusCode))
		}
		return models.Answer{}, &apierr.Error{Kind: apierr.Kind(e.Kind), Message: e.Error}
	}

	var ok models.AskResponse
	if err := json.Unmarshal(data, &ok); err != nil {
		return models.Answer{}, apierr.Transport(g.route, fmt.Errorf("decode response: %w", err))
	}
	return models.Answer{
		Text:       ok.Output,
		Confidence: ok.Confidence,
		Source:     ok.Source,
		Cached:     ok.Cached,
		Warning:    ok.Warning,
		Timestamp:  time.Now(),
	}, nil
}
