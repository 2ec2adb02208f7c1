package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pario-ai/askgate/pkg/cache"
	"github.com/pario-ai/askgate/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var (
		configPath  string
		expiredOnly bool
	)

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent answer cache (sqlite backend)",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersistentCache(configPath, func(c cache.Cache) error {
				return printCacheStats(cmd.OutOrStdout(), c)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersistentCache(configPath, func(c cache.Cache) error {
				if err := c.Clear(expiredOnly); err != nil {
					return err
				}
				what := "All"
				if expiredOnly {
					what = "Expired and evicted"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s cache entries cleared.\n", what)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired or evicted entries")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

// withPersistentCache opens the configured cache and runs fn. The memory
// backend lives inside the serving process, so it cannot be reached here.
func withPersistentCache(configPath string, fn func(cache.Cache) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	c, err := openPersistentCache(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}

func openPersistentCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend != cache.BackendSQLite {
		return nil, fmt.Errorf("cache.backend is %q: entries live in the server process; use the MCP cache_stats tool, or set cache.backend: sqlite", cfg.Cache.Backend)
	}
	return cache.Open(cfg.Cache.Backend, cfg.DBPath, cfg.Cache.TTL)
}

func printCacheStats(w io.Writer, c cache.Cache) error {
	stats, err := c.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Backend:   %s\nEntries:   %d\nHits:      %d\nMisses:    %d\nEvictions: %d\n",
		cache.BackendSQLite, stats.Entries, stats.Hits, stats.Misses, stats.Evictions)
	return nil
}
