package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

func newTestClient(kind Kind, opts Options) *Client {
	logger, _ := test.NewNullLogger()
	return NewClient(kind, opts, nil, logger)
}

func TestSendChatBody(t *testing.T) {
	var got models.ChatCompletionRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(KindChat, Options{SystemPrompt: "be brief", MaxTokens: 256, Temperature: 0.2})
	raw, err := c.Send(context.Background(), models.NewQuery("What is Go?"), Endpoint{
		Name: "primary", URL: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini",
	})
	if err != nil {
		t.Fatal(err)
	}
	if raw.Endpoint != "primary" || raw.StatusCode != http.StatusOK {
		t.Errorf("unexpected raw response %+v", raw)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", auth)
	}
	if path != "/v1/chat/completions" {
		t.Errorf("unexpected path %q", path)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "What is Go?" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 256 {
		t.Errorf("expected max_tokens 256, got %v", got.MaxTokens)
	}
	if got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", got.Temperature)
	}
}

func TestSendLiveBody(t *testing.T) {
	var got models.LiveSearchRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(KindLive, Options{})
	if _, err := c.Send(context.Background(), models.NewQuery("weather"), Endpoint{Name: "live", URL: srv.URL + "/"}); err != nil {
		t.Fatal(err)
	}
	if path != "/v1/answers" {
		t.Errorf("unexpected path %q", path)
	}
	if !got.Realtime {
		t.Error("expected realtime flag on live requests")
	}
	if got.MaxTokens != nil || got.Temperature != nil {
		t.Error("expected unset options to be omitted")
	}
}

func TestSendNon2xxIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := newTestClient(KindChat, Options{})
	_, err := c.Send(context.Background(), models.NewQuery("q"), Endpoint{Name: "primary", URL: srv.URL})
	if !errors.Is(err, apierr.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got %q", err.Error())
	}
}

func TestSendNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(KindChat, Options{})
	_, err := c.Send(context.Background(), models.NewQuery("q"), Endpoint{Name: "gone", URL: url})
	if !errors.Is(err, apierr.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSendEndpointTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(KindChat, Options{})
	_, err := c.Send(context.Background(), models.NewQuery("q"), Endpoint{Name: "slow", URL: srv.URL, Timeout: 50 * time.Millisecond})
	if !errors.Is(err, apierr.ErrTransport) {
		t.Fatalf("expected transport error on endpoint timeout, got %v", err)
	}
}

func TestSendCallerCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := newTestClient(KindChat, Options{})
	_, err := c.Send(ctx, models.NewQuery("q"), Endpoint{Name: "slow", URL: srv.URL, Timeout: 5 * time.Second})
	if !errors.Is(err, apierr.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}
