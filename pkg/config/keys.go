package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
	kDurations
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "listen", typ: kString, env: "ASKGATE_LISTEN",
		apply: func(cfg *Config, v any) { cfg.Listen = v.(string) },
	},
	{
		key: "db_path", typ: kString, env: "ASKGATE_DB_PATH",
		apply: func(cfg *Config, v any) { cfg.DBPath = v.(string) },
	},
	{
		key: "log.level", typ: kString, env: "ASKGATE_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
	{
		key: "log.format", typ: kString, env: "ASKGATE_LOG_FORMAT",
		apply: func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
	},
	{
		key: "cache.backend", typ: kString, env: "ASKGATE_CACHE_BACKEND",
		apply: func(cfg *Config, v any) { cfg.Cache.Backend = v.(string) },
	},
	{
		key: "cache.ttl", typ: kDuration, env: "ASKGATE_CACHE_TTL",
		apply: func(cfg *Config, v any) { cfg.Cache.TTL = v.(time.Duration) },
	},
	{
		key: "usage.enabled", typ: kBool, env: "ASKGATE_USAGE_ENABLED",
		apply: func(cfg *Config, v any) { cfg.Usage.Enabled = v.(bool) },
	},
	{
		key: "usage.retention", typ: kDuration, env: "ASKGATE_USAGE_RETENTION",
		apply: func(cfg *Config, v any) { cfg.Usage.Retention = v.(time.Duration) },
	},
	{
		key: "coordinator.timeout", typ: kDuration, env: "ASKGATE_COORDINATOR_TIMEOUT",
		apply: func(cfg *Config, v any) { cfg.Coordinator.Timeout = v.(time.Duration) },
	},
	{
		key: "coordinator.server_url", typ: kString, env: "ASKGATE_SERVER_URL",
		apply: func(cfg *Config, v any) { cfg.Coordinator.ServerURL = v.(string) },
	},
}

func init() {
	specs = append(specs, gatewaySpecs(RouteChat)...)
	specs = append(specs, gatewaySpecs(RouteLive)...)
}

// gatewaySpecs builds the per-route keys, e.g. ASKGATE_CHAT_PRIMARY_URL.
func gatewaySpecs(route string) []keySpec {
	prefix := "ASKGATE_" + strings.ToUpper(route) + "_"
	gw := func(cfg *Config) *GatewayConfig {
		g, _ := cfg.Gateway(route)
		return g
	}
	return []keySpec{
		{
			key: "gateways." + route + ".endpoints[0].url", typ: kString, env: prefix + "PRIMARY_URL",
			apply: func(cfg *Config, v any) { endpointAt(gw(cfg), 0).URL = v.(string) },
		},
		{
			key: "gateways." + route + ".endpoints[1].url", typ: kString, env: prefix + "FALLBACK_URL",
			apply: func(cfg *Config, v any) { endpointAt(gw(cfg), 1).URL = v.(string) },
		},
		{
			key: "gateways." + route + ".api_key", typ: kString, env: prefix + "API_KEY",
			apply: func(cfg *Config, v any) { gw(cfg).APIKey = v.(string) },
		},
		{
			key: "gateways." + route + ".model", typ: kString, env: prefix + "MODEL",
			apply: func(cfg *Config, v any) {
				g := gw(cfg)
				for i := range g.Endpoints {
					g.Endpoints[i].Model = v.(string)
				}
			},
		},
		{
			key: "gateways." + route + ".rate_limit.capacity", typ: kInt, env: prefix + "RATE_LIMIT",
			apply: func(cfg *Config, v any) { gw(cfg).RateLimit.Capacity = v.(int) },
		},
		{
			key: "gateways." + route + ".rate_limit.window", typ: kDuration, env: prefix + "RATE_WINDOW",
			apply: func(cfg *Config, v any) { gw(cfg).RateLimit.Window = v.(time.Duration) },
		},
		{
			key: "gateways." + route + ".retry.attempts", typ: kInt, env: prefix + "ATTEMPTS",
			apply: func(cfg *Config, v any) { gw(cfg).Retry.Attempts = v.(int) },
		},
		{
			key: "gateways." + route + ".retry.delays", typ: kDurations, env: prefix + "DELAYS",
			apply: func(cfg *Config, v any) { gw(cfg).Retry.Delays = v.([]time.Duration) },
		},
		{
			key: "gateways." + route + ".input.min_length", typ: kInt, env: prefix + "INPUT_MIN_LENGTH",
			apply: func(cfg *Config, v any) { gw(cfg).Input.MinLength = v.(int) },
		},
		{
			key: "gateways." + route + ".input.sanitize", typ: kBool, env: prefix + "INPUT_SANITIZE",
			apply: func(cfg *Config, v any) { gw(cfg).Input.Sanitize = v.(bool) },
		},
		{
			key: "gateways." + route + ".validator.min_confidence", typ: kFloat, env: prefix + "MIN_CONFIDENCE",
			apply: func(cfg *Config, v any) { gw(cfg).Validator.MinConfidence = v.(float64) },
		},
		{
			key: "gateways." + route + ".request.max_tokens", typ: kInt, env: prefix + "MAX_TOKENS",
			apply: func(cfg *Config, v any) { gw(cfg).Request.MaxTokens = v.(int) },
		},
		{
			key: "gateways." + route + ".request.temperature", typ: kFloat, env: prefix + "TEMPERATURE",
			apply: func(cfg *Config, v any) { gw(cfg).Request.Temperature = v.(float64) },
		},
	}
}

// endpointAt returns the i-th endpoint, growing the list when needed.
func endpointAt(g *GatewayConfig, i int) *EndpointConfig {
	for len(g.Endpoints) <= i {
		g.Endpoints = append(g.Endpoints, EndpointConfig{})
	}
	return &g.Endpoints[i]
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDurations:
			if ds, err := parseDurations(raw); err == nil {
				s.apply(cfg, ds)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse durations from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// parseDurations parses a comma-separated list such as "500ms,1s,2s".
func parseDurations(raw string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// EnvKeys lists every supported environment override with its config key.
func EnvKeys() [][2]string {
	out := make([][2]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, [2]string{s.env, s.key})
	}
	return out
}
