package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/askgate/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start askgate as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			// stdout carries the protocol, so logs go to stderr.
			log, err := newLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}

			a, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			deps := mcp.Deps{Cache: a.cache, Version: version}
			if len(a.gateways) > 0 {
				deps.Asker = a.coordinator()
			}
			for _, g := range a.gateways {
				deps.Gateways = append(deps.Gateways, g)
			}
			if a.usage != nil {
				deps.Usage = a.usage
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return mcp.ServeStdio(ctx, mcp.NewServer(deps), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}
