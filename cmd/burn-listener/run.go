package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wali-hu/usdc-burn-listener/internal/config"
	"github.com/wali-hu/usdc-burn-listener/internal/dedupe"
	"github.com/wali-hu/usdc-burn-listener/internal/engine"
	"github.com/wali-hu/usdc-burn-listener/internal/health"
	"github.com/wali-hu/usdc-burn-listener/internal/logging"
	"github.com/wali-hu/usdc-burn-listener/internal/metrics"
	"github.com/wali-hu/usdc-burn-listener/internal/sink"
	solanasrc "github.com/wali-hu/usdc-burn-listener/internal/source/solana"
	"github.com/wali-hu/usdc-burn-listener/internal/storage"
)

var (
	flagOnce    bool
	flagDryRun  bool
	flagHealth  string
	flagMetrics string
)

func init() {
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "Process one poll cycle and exit")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Decode and log burns but do not send to sinks")
	runCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	runCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the burn poll loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = "info"
		}
		log := logging.NewWithLevel(logLevel)
		ctx := cmd.Context()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		client := solanasrc.NewClient(solanasrc.NewRPCClient(cfg.Solana.RPCURL), log)

		sinks := map[string]sink.Sender{}
		for _, s := range cfg.Sinks {
			var sender sink.Sender
			switch s.Type {
			case "stdout":
				sender = sink.NewStdoutSender(os.Stdout)
			case "slack":
				sender, err = sink.NewSlackSender(s.WebhookURL, s.Template)
			case "teams":
				sender, err = sink.NewTeamsSender(s.WebhookURL, s.Template)
			case "webhook":
				sender, err = sink.NewWebhookSender(s.URL, s.Method, s.Template, nil)
			default:
				continue
			}
			if err != nil {
				return fmt.Errorf("sink %s: %w", s.ID, err)
			}
			sinks[s.ID] = sink.NewRateLimitedSender(sender, s.RatePerMinute)
		}

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
			log.Info("metrics enabled", "addr", flagMetrics)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetrics, Handler: mux}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}

		if flagHealth != "" {
			rpcChecker := health.NewRPCChecker(client)
			healthSrv := health.Serve(flagHealth, health.Checker{
				DBPing:     store.Ping,
				SolanaPing: rpcChecker.Ping,
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		tracker := dedupe.NewTracker(cfg.Solana.DedupeCapacity)
		runner := engine.NewRunner(client, store, tracker, sinks, engine.Options{
			Mint:           cfg.Solana.MintKey(),
			BatchLimit:     cfg.Solana.BatchLimit,
			DedupeCapacity: cfg.Solana.DedupeCapacity,
			Backoff: engine.Backoff{
				Initial:    cfg.Solana.Backoff.InitialDuration(),
				Max:        cfg.Solana.Backoff.MaxDuration(),
				Multiplier: cfg.Solana.Backoff.Multiplier,
			},
			DryRun:  flagDryRun,
			Metrics: mtr,
			Logger:  log,
		})

		if err := runner.Restore(ctx); err != nil {
			return fmt.Errorf("restore poll state: %w", err)
		}

		log.Info("watching mint for burns",
			"mint", cfg.Solana.Mint,
			"rpc_url", cfg.Solana.RPCURL,
			"poll_interval", cfg.Solana.PollInterval,
			"dry_run", flagDryRun,
		)

		if flagOnce {
			return runner.RunOnce(ctx)
		}

		err = runner.Run(ctx, cfg.Solana.PollIntervalDuration())
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown complete")
			return nil
		}
		return err
	},
}
