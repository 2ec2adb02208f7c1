package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/askgate/pkg/gateway"
	"github.com/pario-ai/askgate/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath     string
		listen         string
		reportInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			log, err := newLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}

			a, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if len(a.gateways) == 0 {
				return errors.New("no gateways configured: set endpoints for gateways.chat or gateways.live")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Listen, log, a.gateways...)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})
			if reportInterval > 0 {
				g.Go(func() error {
					reportMetrics(gctx, log, reportInterval, a.gateways)
					return nil
				})
			}

			log.WithField("config", configPath).Info("starting askgate")
			if err := g.Wait(); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	cmd.Flags().DurationVar(&reportInterval, "report-interval", 0, "log gateway metrics at this interval (0 disables)")
	return cmd
}

// reportMetrics logs each gateway's counters every interval until ctx is done.
func reportMetrics(ctx context.Context, log logrus.FieldLogger, interval time.Duration, gateways []*gateway.Gateway) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, gw := range gateways {
				m := gw.Metrics()
				log.WithFields(logrus.Fields{
					"route":        gw.Route(),
					"requests":     m.Requests,
					"failures":     m.Failures,
					"success_rate": m.SuccessRate,
					"avg_latency":  m.AvgLatencyMs,
				}).Info("gateway metrics")
			}
		}
	}
}
