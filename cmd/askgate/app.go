package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pario-ai/askgate/pkg/cache"
	"github.com/pario-ai/askgate/pkg/config"
	"github.com/pario-ai/askgate/pkg/coordinator"
	"github.com/pario-ai/askgate/pkg/gateway"
	"github.com/pario-ai/askgate/pkg/input"
	"github.com/pario-ai/askgate/pkg/metrics"
	"github.com/pario-ai/askgate/pkg/provider"
	"github.com/pario-ai/askgate/pkg/quality"
	"github.com/pario-ai/askgate/pkg/ratelimit"
	"github.com/pario-ai/askgate/pkg/retry"
	"github.com/pario-ai/askgate/pkg/router"
	"github.com/pario-ai/askgate/pkg/usage"
)

const defaultConfigPath = "askgate.yaml"

// loadConfig loads path. The default path is optional: when it does not
// exist, defaults and ASKGATE_* overrides are used.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a logrus logger from the log section.
func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// app holds the in-process gateways and their shared collaborators.
type app struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	gateways []*gateway.Gateway
	cache    cache.Cache
	usage    *usage.SQLiteStore
}

// buildApp wires every enabled gateway from cfg. Gateways without
// endpoints are skipped.
func buildApp(cfg *config.Config, log logrus.FieldLogger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	c, err := cache.Open(cfg.Cache.Backend, cfg.DBPath, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	a.cache = c

	if cfg.Usage.Enabled {
		store, err := usage.New(cfg.DBPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init usage log: %w", err)
		}
		store.StartRetention(cfg.Usage.Retention, 0)
		a.usage = store
	}

	var policies []ratelimit.Policy
	for _, route := range []string{config.RouteChat, config.RouteLive} {
		gc, _ := cfg.Gateway(route)
		if gc.Enabled() {
			policies = append(policies, ratelimit.Policy{Route: route, Capacity: gc.RateLimit.Capacity, Window: gc.RateLimit.Window})
		}
	}
	limiter := ratelimit.New(policies...)

	httpClient := &http.Client{}
	for _, route := range []string{config.RouteChat, config.RouteLive} {
		gc, _ := cfg.Gateway(route)
		if !gc.Enabled() {
			log.WithField("route", route).Debug("gateway disabled: no endpoints configured")
			continue
		}
		a.gateways = append(a.gateways, buildGateway(route, gc, limiter, a.cache, a.usage, httpClient, log))
	}
	return a, nil
}

func buildGateway(route string, gc *config.GatewayConfig, limiter *ratelimit.Limiter, c cache.Cache,
	store *usage.SQLiteStore, httpClient *http.Client, log logrus.FieldLogger) *gateway.Gateway {
	glog := log.WithField("route", route)

	client := provider.NewClient(provider.Kind(route), provider.Options{
		SystemPrompt: gc.Request.SystemPrompt,
		MaxTokens:    gc.Request.MaxTokens,
		Temperature:  gc.Request.Temperature,
	}, httpClient, glog)

	var qopts []quality.Option
	if len(gc.Validator.GenericPhrases) > 0 {
		qopts = append(qopts, quality.WithClassifier(quality.PhraseClassifier(gc.Validator.GenericPhrases)))
	}
	validator := quality.New(quality.Rules{
		MinLength:     gc.Validator.MinLength,
		MinConfidence: gc.Validator.MinConfidence,
		MaxAge:        gc.Validator.MaxAge,
	}, qopts...)

	collector := metrics.New()
	rt := router.New(gc.ProviderEndpoints(), gc.Retry.Attempts)
	scheduler := retry.New(client, validator, rt, gc.Retry.Delays, collector, glog)

	opts := gateway.Options{
		Route: route,
		Input: input.Rules{
			MinLength: gc.Input.MinLength,
			MaxLength: gc.Input.MaxLength,
			Sanitize:  gc.Input.Sanitize,
		},
		Limiter:   limiter,
		Cache:     c,
		Scheduler: scheduler,
		Metrics:   collector,
		Logger:    log,
	}
	if store != nil {
		opts.Usage = store
	}
	return gateway.New(opts)
}

// coordinator chains the in-process gateways, chat first.
func (a *app) coordinator() *coordinator.Coordinator {
	links := make([]coordinator.Link, 0, len(a.gateways))
	for _, g := range a.gateways {
		links = append(links, coordinator.Link{Name: g.Route(), Answerer: g})
	}
	return coordinator.New(coordinator.Options{Timeout: a.cfg.Coordinator.Timeout, Logger: a.log}, links...)
}

// Close releases the cache and usage log.
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.usage != nil {
		errs = append(errs, a.usage.Close())
	}
	return errors.Join(errs...)
}

// remoteCoordinator chains the chat and live routes of a running server.
func remoteCoordinator(cfg *config.Config, serverURL string, log logrus.FieldLogger) *coordinator.Coordinator {
	if serverURL == "" {
		serverURL = cfg.Coordinator.ServerURL
	}
	client := &http.Client{}
	return coordinator.New(coordinator.Options{Timeout: cfg.Coordinator.Timeout, Logger: log},
		coordinator.Link{Name: config.RouteChat, Answerer: coordinator.NewRemoteGateway(serverURL, config.RouteChat, client)},
		coordinator.Link{Name: config.RouteLive, Answerer: coordinator.NewRemoteGateway(serverURL, config.RouteLive, client)},
	)
}
