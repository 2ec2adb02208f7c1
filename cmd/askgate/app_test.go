package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/pario-ai/askgate/pkg/config"
	"github.com/pario-ai/askgate/pkg/models"
	"github.com/pario-ai/askgate/pkg/server"
)

func chatUpstream(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"`+content+`"}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, chatURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "askgate.db")
	if chatURL != "" {
		cfg.Gateways.Chat.Endpoints = []config.EndpointConfig{{URL: chatURL, APIKey: "sk-test"}}
	}
	return cfg
}

func TestBuildAppSkipsDisabledGateways(t *testing.T) {
	up := chatUpstream(t, "The capital of France is Paris.")
	log, _ := test.NewNullLogger()

	a, err := buildApp(testConfig(t, up.URL), log)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if len(a.gateways) != 1 || a.gateways[0].Route() != config.RouteChat {
		t.Fatalf("expected only the chat gateway, got %d gateways", len(a.gateways))
	}
	if a.usage == nil {
		t.Error("expected usage log to be enabled by default")
	}
}

func TestLocalCoordinatorAnswers(t *testing.T) {
	up := chatUpstream(t, "The capital of France is Paris.")
	log, _ := test.NewNullLogger()

	a, err := buildApp(testConfig(t, up.URL), log)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	answer, err := a.coordinator().Generate(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if answer.Text != "The capital of France is Paris." {
		t.Errorf("unexpected answer %q", answer.Text)
	}
	if answer.Source != config.RouteChat {
		t.Errorf("expected source chat, got %s", answer.Source)
	}
}

func TestRemoteCoordinatorAgainstServer(t *testing.T) {
	up := chatUpstream(t, "The capital of France is Paris.")
	log, _ := test.NewNullLogger()

	cfg := testConfig(t, up.URL)
	cfg.Usage.Enabled = false
	a, err := buildApp(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	srv := httptest.NewServer(server.New("", log, a.gateways...))
	defer srv.Close()

	answer, err := remoteCoordinator(cfg, srv.URL, log).Generate(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if answer.Text != "The capital of France is Paris." {
		t.Errorf("unexpected answer %q", answer.Text)
	}

	var buf bytes.Buffer
	if err := printLiveMetrics(context.Background(), &buf, srv.URL, config.RouteChat); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "100.0%") {
		t.Errorf("expected full success rate in output, got:\n%s", buf.String())
	}
}

func TestLoadConfigDefaultPathOptional(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("expected defaults when askgate.yaml is absent, got %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("expected default listen, got %s", cfg.Listen)
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for an explicit missing path")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", log.GetLevel())
	}
	log.WithField("route", "chat").Debug("hello")
	if !strings.Contains(buf.String(), `"route":"chat"`) {
		t.Errorf("expected JSON output, got %s", buf.String())
	}

	if _, err := newLogger(config.LogConfig{Level: "loud"}, &buf); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, models.Answer{Text: "Paris.", Source: "live", Confidence: 0.8, Cached: true, Warning: "This answer may not be up to date."})
	out := buf.String()
	for _, want := range []string{"Paris.", "source=live", "confidence=0.80", "cached", "warning: This answer may not be up to date."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestTopFailure(t *testing.T) {
	tests := []struct {
		in   map[string]int64
		want string
	}{
		{nil, "-"},
		{map[string]int64{"tooShort": 2, "stale": 5}, "stale"},
		{map[string]int64{"tooShort": 3, "generic": 3}, "generic"},
	}
	for _, tt := range tests {
		if got := topFailure(tt.in); got != tt.want {
			t.Errorf("topFailure(%v) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenPersistentCacheRequiresSQLite(t *testing.T) {
	cfg := testConfig(t, "")
	if _, err := openPersistentCache(cfg); err == nil || !strings.Contains(err.Error(), "memory") {
		t.Fatalf("expected memory backend to be refused, got %v", err)
	}

	cfg.Cache.Backend = "sqlite"
	c, err := openPersistentCache(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set("chat:what is go", models.Answer{Text: "Go is a programming language."}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("chat:what is go"); !ok {
		t.Fatal("expected cache hit")
	}

	var buf bytes.Buffer
	if err := printCacheStats(&buf, c); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Backend:   sqlite", "Entries:   1", "Hits:      1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output, got:\n%s", want, buf.String())
		}
	}
}
