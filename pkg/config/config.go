// Package config loads askgate configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pario-ai/askgate/pkg/cache"
	"github.com/pario-ai/askgate/pkg/provider"
)

// Route names.
const (
	RouteChat = "chat"
	RouteLive = "live"
)

// Config holds all askgate configuration.
type Config struct {
	Listen      string            `yaml:"listen"`
	DBPath      string            `yaml:"db_path"`
	Log         LogConfig         `yaml:"log"`
	Cache       CacheConfig       `yaml:"cache"`
	Usage       UsageConfig       `yaml:"usage"`
	Gateways    GatewaysConfig    `yaml:"gateways"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CacheConfig controls the answer cache.
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

// UsageConfig controls the SQLite usage log. Records older than Retention
// are swept hourly; zero keeps them forever.
type UsageConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
}

// GatewaysConfig holds one gateway per route.
type GatewaysConfig struct {
	Chat GatewayConfig `yaml:"chat"`
	Live GatewayConfig `yaml:"live"`
}

// GatewayConfig configures a single gateway route.
// APIKey is used for endpoints that do not set their own.
type GatewayConfig struct {
	APIKey    string           `yaml:"api_key"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
	RateLimit RateLimitConfig  `yaml:"rate_limit"`
	Retry     RetryConfig      `yaml:"retry"`
	Input     InputConfig      `yaml:"input"`
	Validator ValidatorConfig  `yaml:"validator"`
	Request   RequestConfig    `yaml:"request"`
}

// EndpointConfig defines an upstream provider endpoint.
type EndpointConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig is a fixed-window limit.
type RateLimitConfig struct {
	Window   time.Duration `yaml:"window"`
	Capacity int           `yaml:"capacity"`
}

// RetryConfig bounds the attempt plan. An empty Delays list selects
// exponential backoff.
type RetryConfig struct {
	Attempts int             `yaml:"attempts"`
	Delays   []time.Duration `yaml:"delays"`
}

// InputConfig mirrors input.Rules.
type InputConfig struct {
	MinLength int  `yaml:"min_length"`
	MaxLength int  `yaml:"max_length"`
	Sanitize  bool `yaml:"sanitize"`
}

// ValidatorConfig mirrors quality.Rules plus the generic-phrase list.
type ValidatorConfig struct {
	MinLength      int           `yaml:"min_length"`
	MinConfidence  float64       `yaml:"min_confidence"`
	MaxAge         time.Duration `yaml:"max_age"`
	GenericPhrases []string      `yaml:"generic_phrases"`
}

// RequestConfig shapes the upstream request body.
type RequestConfig struct {
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// CoordinatorConfig controls the client-side request coordinator.
type CoordinatorConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	ServerURL string        `yaml:"server_url"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "askgate.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			Backend: cache.BackendMemory,
			TTL:     cache.DefaultTTL,
		},
		Usage: UsageConfig{Enabled: true, Retention: 30 * 24 * time.Hour},
		Gateways: GatewaysConfig{
			Chat: GatewayConfig{
				RateLimit: RateLimitConfig{Window: time.Minute, Capacity: 15},
				Retry:     RetryConfig{Attempts: 2, Delays: defaultDelays()},
				Input:     InputConfig{MinLength: 3, MaxLength: 1000},
				Validator: ValidatorConfig{MinLength: 20, MinConfidence: 0.6, MaxAge: 10 * time.Second},
				Request:   RequestConfig{MaxTokens: 500, Temperature: 0.3},
			},
			Live: GatewayConfig{
				RateLimit: RateLimitConfig{Window: time.Minute, Capacity: 10},
				Retry:     RetryConfig{Attempts: 3, Delays: defaultDelays()},
				Input:     InputConfig{MinLength: 0, MaxLength: 1000},
				Validator: ValidatorConfig{MinLength: 20, MinConfidence: 0.6, MaxAge: 10 * time.Second},
				Request:   RequestConfig{MaxTokens: 500},
			},
		},
		Coordinator: CoordinatorConfig{
			Timeout:   15 * time.Second,
			ServerURL: "http://localhost:8080",
		},
	}
}

func defaultDelays() []time.Duration {
	return []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
}

// Load reads a YAML config file, expands environment variables and
// applies ASKGATE_* overrides. An empty path loads defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Gateway returns the configuration for route.
func (c *Config) Gateway(route string) (*GatewayConfig, bool) {
	switch route {
	case RouteChat:
		return &c.Gateways.Chat, true
	case RouteLive:
		return &c.Gateways.Live, true
	}
	return nil, false
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendSQLite:
	default:
		return fmt.Errorf("config: cache.backend must be %q or %q, got %q", cache.BackendMemory, cache.BackendSQLite, c.Cache.Backend)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("config: cache.ttl must not be negative")
	}
	for _, route := range []string{RouteChat, RouteLive} {
		g, _ := c.Gateway(route)
		if err := g.validate(); err != nil {
			return fmt.Errorf("config: gateways.%s: %w", route, err)
		}
	}
	return nil
}

func (g *GatewayConfig) validate() error {
	if g.RateLimit.Capacity < 0 {
		return fmt.Errorf("rate_limit.capacity must not be negative")
	}
	if g.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts must not be negative")
	}
	if g.Input.MaxLength > 0 && g.Input.MinLength > g.Input.MaxLength {
		return fmt.Errorf("input.min_length %d exceeds max_length %d", g.Input.MinLength, g.Input.MaxLength)
	}
	if g.Validator.MinLength < 0 {
		return fmt.Errorf("validator.min_length must not be negative")
	}
	if g.Validator.MinConfidence < 0 || g.Validator.MinConfidence > 1 {
		return fmt.Errorf("validator.min_confidence must be within [0,1]")
	}
	for i, ep := range g.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("endpoints[%d]: url is required", i)
		}
	}
	return nil
}

// Enabled reports whether the gateway has any endpoint to call.
func (g *GatewayConfig) Enabled() bool {
	return len(g.Endpoints) > 0
}

// ProviderEndpoints converts the configured endpoints, filling in names and
// the gateway-level API key.
func (g *GatewayConfig) ProviderEndpoints() []provider.Endpoint {
	eps := make([]provider.Endpoint, 0, len(g.Endpoints))
	for i, ep := range g.Endpoints {
		name := ep.Name
		if name == "" {
			name = endpointName(i)
		}
		key := ep.APIKey
		if key == "" {
			key = g.APIKey
		}
		eps = append(eps, provider.Endpoint{
			Name:    name,
			URL:     ep.URL,
			APIKey:  key,
			Model:   ep.Model,
			Timeout: ep.Timeout,
		})
	}
	return eps
}

func endpointName(i int) string {
	switch i {
	case 0:
		return "primary"
	case 1:
		return "fallback"
	}
	return fmt.Sprintf("fallback-%d", i)
}

// Redacted returns a copy with every credential masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Gateways.Chat = c.Gateways.Chat.redacted()
	out.Gateways.Live = c.Gateways.Live.redacted()
	return &out
}

func (g GatewayConfig) redacted() GatewayConfig {
	g.APIKey = mask(g.APIKey)
	eps := make([]EndpointConfig, len(g.Endpoints))
	for i, ep := range g.Endpoints {
		ep.APIKey = mask(ep.APIKey)
		eps[i] = ep
	}
	g.Endpoints = eps
	return g
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

// YAML renders c as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
