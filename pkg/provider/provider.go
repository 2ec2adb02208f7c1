// Package provider talks to upstream answer providers.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

// Kind selects the upstream wire contract.
type Kind string

const (
	// KindChat is an OpenAI-compatible chat completions API.
	KindChat Kind = "chat"
	// KindLive is a search-grounded API returning {answer, confidence, timestamp, sources}.
	KindLive Kind = "live"
)

// DefaultTimeout bounds a single upstream call when the endpoint sets none.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of an upstream response is read.
const maxBody = 1 << 20

// Endpoint is one configured upstream.
type Endpoint struct {
	Name    string
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Options shape the request body sent upstream.
type Options struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// RawResponse is an upstream payload that has not been parsed.
type RawResponse struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

// Client sends queries to endpoints of one Kind.
type Client struct {
	kind Kind
	opts Options
	http *http.Client
	log  logrus.FieldLogger
}

// NewClient creates a Client. A nil httpClient uses http.DefaultClient and a
// nil logger the logrus standard logger.
func NewClient(kind Kind, opts Options, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{kind: kind, opts: opts, http: httpClient, log: log}
}

// Kind returns the wire contract this client speaks.
func (c *Client) Kind() Kind { return c.kind }

// Path returns the request path appended to an endpoint URL.
func (k Kind) Path() string {
	if k == KindLive {
		return "/v1/answers"
	}
	return "/v1/chat/completions"
}

// Send posts q to ep. Network failures, non-2xx statuses and the endpoint
// timeout are reported as transport errors. If ctx itself is done the error
// is Cancelled instead, so callers stop retrying.
func (c *Client) Send(ctx context.Context, q models.Query, ep Endpoint) (RawResponse, error) {
	body, err := c.buildBody(q, ep)
	if err != nil {
		return RawResponse{}, apierr.Transport(ep.Name, fmt.Errorf("encode request: %w", err))
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(ep.URL, "/") + c.kind.Path()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return RawResponse{}, apierr.Transport(ep.Name, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return RawResponse{}, apierr.Cancelled(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		return RawResponse{}, apierr.Transport(ep.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return RawResponse{}, apierr.Cancelled(ctx.Err())
		}
		return RawResponse{}, apierr.Transport(ep.Name, fmt.Errorf("read response: %w", err))
	}

	c.log.WithFields(logrus.Fields{
		"endpoint": ep.Name,
		"status":   resp.StatusCode,
		"bytes":    len(respBody),
	}).Debug("upstream responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RawResponse{}, apierr.Transport(ep.Name, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, snippet(respBody)))
	}

	return RawResponse{Endpoint: ep.Name, StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) buildBody(q models.Query, ep Endpoint) ([]byte, error) {
	var messages []models.ChatMessage
	if c.opts.SystemPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: c.opts.SystemPrompt})
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: q.Text})

	var temperature *float64
	if c.opts.Temperature > 0 {
		t := c.opts.Temperature
		temperature = &t
	}
	var maxTokens *int
	if c.opts.MaxTokens > 0 {
		n := c.opts.MaxTokens
		maxTokens = &n
	}

	if c.kind == KindLive {
		return json.Marshal(models.LiveSearchRequest{
			Model:       ep.Model,
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Realtime:    true,
		})
	}
	return json.Marshal(models.ChatCompletionRequest{
		Model:       ep.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
