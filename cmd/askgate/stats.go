package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/askgate/pkg/config"
	"github.com/pario-ai/askgate/pkg/models"
	"github.com/pario-ai/askgate/pkg/usage"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		route      string
		since      time.Duration
		recent     int
		live       bool
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show gateway usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if live {
				if serverURL == "" {
					serverURL = cfg.Coordinator.ServerURL
				}
				return printLiveMetrics(cmd.Context(), out, serverURL, route)
			}

			store, err := usage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()

			if recent > 0 {
				recs, err := store.Recent(ctx, route, recent)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(out, "No requests found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tREQUEST ID\tROUTE\tSUCCESS\tCACHED\tATTEMPTS\tLATENCY\tFAILURE")
				for _, r := range recs {
					failure := "-"
					if !r.Success {
						failure = r.FailureKind
						if r.FailureReason != "" {
							failure += "/" + r.FailureReason
						}
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%d\t%dms\t%s\n",
						r.CreatedAt.Format("2006-01-02T15:04:05"), r.RequestID, r.Route, r.Success, r.Cached, r.Attempts, r.LatencyMs, failure)
				}
				return w.Flush()
			}

			from := time.Now().Add(-since)
			summaries, err := store.Summary(ctx, route, from)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROUTE\tREQUESTS\tSUCCESS\tCACHE HITS\tFALLBACKS\tAVG LATENCY")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.0fms\n",
					s.Route, s.RequestCount, s.Successes, s.CacheHits, s.Fallbacks, s.AvgLatencyMs)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			failures, err := store.FailureCounts(ctx, route, from)
			if err != nil {
				return err
			}
			if len(failures) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROUTE\tREASON\tCOUNT")
			for _, f := range failures {
				fmt.Fprintf(w, "%s\t%s\t%d\n", f.Route, f.Reason, f.Count)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&route, "route", "", "filter by route (chat or live)")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look-back window")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent requests instead of a summary")
	cmd.Flags().BoolVar(&live, "live", false, "fetch in-memory metrics from a running server")
	cmd.Flags().StringVar(&serverURL, "server", "", "askgate server URL for --live (default coordinator.server_url)")
	return cmd
}

// liveMetrics is the body of GET /v1/{route}/metrics.
type liveMetrics struct {
	models.MetricsSnapshot
	RateLimit *models.RateLimitStatus `json:"rateLimit,omitempty"`
}

func fetchMetrics(ctx context.Context, serverURL, route string) (liveMetrics, error) {
	var m liveMetrics
	url := strings.TrimRight(serverURL, "/") + "/v1/" + route + "/metrics"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return m, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return m, fmt.Errorf("fetch %s metrics: %w", route, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return m, fmt.Errorf("fetch %s metrics: status %d", route, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return m, fmt.Errorf("decode %s metrics: %w", route, err)
	}
	return m, nil
}

func printLiveMetrics(ctx context.Context, out io.Writer, serverURL, route string) error {
	routes := []string{config.RouteChat, config.RouteLive}
	if route != "" {
		routes = []string{route}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tREQUESTS\tFAILURES\tSUCCESS RATE\tAVG LATENCY\tRATE WINDOW\tTOP FAILURE")
	for _, r := range routes {
		m, err := fetchMetrics(ctx, serverURL, r)
		if err != nil {
			return err
		}
		window := "-"
		if m.RateLimit != nil {
			window = fmt.Sprintf("%d/%d", m.RateLimit.Used, m.RateLimit.Capacity)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%.0fms\t%s\t%s\n",
			r, m.Requests, m.Failures, m.SuccessRate*100, m.AvgLatencyMs, window, topFailure(m.FailureReasons))
	}
	return w.Flush()
}

// topFailure returns the most frequent failure reason, ties broken by name.
func topFailure(reasons map[string]int64) string {
	best, bestN := "-", int64(0)
	for reason, n := range reasons {
		if n > bestN || (n == bestN && reason < best) {
			best, bestN = reason, n
		}
	}
	return best
}
