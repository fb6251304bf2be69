package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/liamashdown/cryptoguard/internal/analyzer"
	"github.com/liamashdown/cryptoguard/internal/api"
	"github.com/liamashdown/cryptoguard/internal/cache"
	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/explorer"
	"github.com/liamashdown/cryptoguard/internal/pricing"
	"github.com/liamashdown/cryptoguard/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	chain string
}

func main() {
	a := &app{log: logrus.New()}

	root := &cobra.Command{
		Use:           "cryptoguard",
		Short:         "Heuristic risk scoring for EVM contracts and wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.chain, "chain", "", "chain key to analyze on (overrides CHAIN)")

	root.AddCommand(a.serveCmd(), a.contractCmd(), a.walletCmd())

	if err := root.Execute(); err != nil {
		a.log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func (a *app) setup() error {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if a.chain != "" {
		cfg.Chain = strings.ToLower(a.chain)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	configureLogger(a.log, cfg.LogLevel, os.Stdout)
	return nil
}

func configureLogger(log *logrus.Logger, level string, out *os.File) {
	log.SetOutput(out)
	if term.IsTerminal(int(out.Fd())) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown LOG_LEVEL, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

// build wires the analyzer. The returned cleanup closes storage and cache.
func (a *app) build(withStorage bool) (*analyzer.Analyzer, map[string]api.Pinger, func(), error) {
	cfg, log := a.cfg, a.log
	checks := map[string]api.Pinger{}
	var closers []io.Closer

	var store analyzer.Store
	if withStorage && cfg.DatabaseDSN != "" {
		db, err := storage.New(cfg, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("run database migrations: %w", err)
		}
		log.Info("Database migrations complete")
		store = db
		checks["database"] = db
		closers = append(closers, db)
	} else if withStorage {
		log.Info("DATABASE_DSN not set, analysis history disabled")
	}

	resultCache := cache.New(cfg)
	if r, ok := resultCache.(*cache.Redis); ok {
		checks["redis"] = r
		closers = append(closers, r)
	}

	explorerClient := explorer.NewClient(cfg)
	priceClient := pricing.NewClient(cfg)
	alertSender := createAlertSender(cfg, log)

	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"chain":       cfg.Chain,
		"chain_id":    cfg.ActiveChain().ChainID,
		"alert_mode":  cfg.AlertMode,
		"cache_ttl":   cfg.CacheTTL.String(),
		"redis":       cfg.RedisAddr != "",
		"concurrency": cfg.AnalysisConcurrency,
	}).Info("Configuration loaded")

	an := analyzer.New(cfg, explorerClient, priceClient, resultCache, store, alertSender, log)

	cleanup := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.WithError(err).Warn("Close failed")
			}
		}
	}
	return an, checks, cleanup, nil
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.log.Info("Starting cryptoguard service...")

			an, checks, cleanup, err := a.build(true)
			if err != nil {
				return err
			}
			defer cleanup()

			server := api.NewServer(an, checks, a.log).NewHTTPServer(a.cfg.HTTPPort)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.WithField("port", a.cfg.HTTPPort).Info("Starting HTTP server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
				a.log.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			a.log.Info("Graceful shutdown complete")
			return nil
		},
	}
}

func (a *app) contractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contract <address>",
		Short: "Score one contract and print the report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd, func(ctx context.Context, an *analyzer.Analyzer) (interface{}, error) {
				return an.AnalyzeContract(ctx, args[0])
			})
		},
	}
}

func (a *app) walletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet <address>",
		Short: "Score one wallet and print the report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd, func(ctx context.Context, an *analyzer.Analyzer) (interface{}, error) {
				return an.AnalyzeWallet(ctx, args[0])
			})
		},
	}
}

// runOnce keeps stdout for the report and moves logs to stderr
func (a *app) runOnce(cmd *cobra.Command, run func(context.Context, *analyzer.Analyzer) (interface{}, error)) error {
	configureLogger(a.log, a.cfg.LogLevel, os.Stderr)

	an, _, cleanup, err := a.build(false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, an)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
