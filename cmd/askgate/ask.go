package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/coordinator"
	"github.com/pario-ai/askgate/pkg/models"
)

func newAskCmd() *cobra.Command {
	var (
		configPath string
		serverURL  string
		local      bool
		jsonOut    bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question through the chat and live gateways",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}

			var coord *coordinator.Coordinator
			if local {
				a, err := buildApp(cfg, log)
				if err != nil {
					return err
				}
				defer func() { _ = a.Close() }()
				if len(a.gateways) == 0 {
					return errors.New("no gateways configured for --local")
				}
				coord = a.coordinator()
			} else {
				coord = remoteCoordinator(cfg, serverURL, log)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			question := strings.Join(args, " ")
			answer, err := generate(ctx, log, coord, question, !quiet && !jsonOut)
			if err != nil && apierr.KindOf(err) != apierr.KindTimeout {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), answer)
			}
			printAnswer(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&serverURL, "server", "", "askgate server URL (default coordinator.server_url)")
	cmd.Flags().BoolVar(&local, "local", false, "run the gateways in-process instead of calling a server")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the answer as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress spinner")
	return cmd
}

// generate runs the question, showing a spinner on stderr while waiting.
func generate(ctx context.Context, log logrus.FieldLogger, coord *coordinator.Coordinator, question string, spin bool) (models.Answer, error) {
	if spin {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Thinking..."
		s.Start()
		defer s.Stop()
	}
	answer, err := coord.Generate(ctx, question)
	if err != nil {
		log.WithError(err).Debug("ask failed")
	}
	return answer, err
}

func printAnswer(w io.Writer, a models.Answer) {
	fmt.Fprintln(w, a.Text)
	fmt.Fprintln(w)
	meta := fmt.Sprintf("source=%s confidence=%.2f", a.Source, a.Confidence)
	if a.Cached {
		meta += " cached"
	}
	fmt.Fprintln(w, meta)
	if a.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", a.Warning)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
