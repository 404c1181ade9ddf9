// Command tradingbot runs the live/paper trading event loop against
// 5-minute Polymarket prediction markets: it subscribes to the market feed,
// evaluates a registered PredictionMarketStrategy on every snapshot, and
// opens/closes positions through either a real account (live) or a virtual
// ledger (paper).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"predictengine/internal/api"
	"predictengine/internal/config"
	"predictengine/internal/feed"
	"predictengine/internal/live"
	"predictengine/internal/store"
	"predictengine/internal/strategy"
	"predictengine/internal/telemetry"
	"predictengine/internal/tradingapi"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("PREDICTENGINE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()

	var auth *tradingapi.Auth
	if !cfg.Trading.Paper {
		auth, err = tradingapi.NewAuth(
			cfg.Wallet.PrivateKey,
			cfg.Wallet.ChainID,
			tradingapi.SignatureType(cfg.Wallet.SignatureType),
			cfg.Wallet.FunderAddress,
			tradingapi.Credentials{
				ApiKey:     cfg.API.ApiKey,
				Secret:     cfg.API.Secret,
				Passphrase: cfg.API.Passphrase,
			},
		)
		if err != nil {
			logger.Error("failed to build auth", "error", err)
			os.Exit(1)
		}
	}

	client := tradingapi.NewClient(tradingapi.ClientConfig{
		CLOBBaseURL:  cfg.API.CLOBBaseURL,
		GammaBaseURL: cfg.API.GammaBaseURL,
		Metrics:      metrics,
	}, auth, logger)

	marketFeed := feed.New(cfg.API.WSMarketURL, metrics, logger)

	predictionFactory := strategy.DefaultPredictionFactory()
	strat, err := predictionFactory.Build(cfg.Trading.Strategy)
	if err != nil {
		logger.Error("build strategy failed", "error", err)
		os.Exit(1)
	}

	mode := "live"
	if cfg.Trading.Paper {
		mode = "paper"
	}

	positionStore, err := buildPositionStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open position store", "error", err)
		os.Exit(1)
	}
	if positionStore != nil {
		defer positionStore.Close()
	}

	engineCfg := live.EngineConfig{
		ActiveMarkets:          cfg.Trading.Markets,
		SeriesSlugs:            cfg.Trading.SeriesSlugs,
		OrderBookRefreshS:      cfg.Trading.OrderBookRefreshS,
		MaxHistory:             cfg.Trading.MaxHistory,
		KellyFraction:          decimal.NewFromFloat(cfg.Trading.KellyFraction),
		MaxTicks:               cfg.Trading.MaxTicks,
		MaxLossPct:             decimal.NewFromFloat(cfg.Trading.MaxLossPct),
		Mode:                   mode,
		Metrics:                metrics,
		Store:                  positionStore,
		ExplicitResolutionSell: cfg.Trading.ExplicitResolutionSell,
	}

	initialCapital := decimal.NewFromFloat(cfg.Trading.InitialCapital)
	maxPositionPct := decimal.NewFromFloat(cfg.Trading.MaxPositionPct)

	var engine interface {
		Bootstrap(ctx context.Context) error
		Run(ctx context.Context) error
		Equity() decimal.Decimal
	}
	var provider api.StatusProvider

	if cfg.Trading.Paper {
		pe := live.NewPaperEngine(client, marketFeed, strat, initialCapital, maxPositionPct, engineCfg, logger)
		engine = pe
		provider = pe
	} else {
		le := live.NewLiveEngine(client, marketFeed, strat, maxPositionPct, initialCapital, engineCfg, logger)
		engine = le
		provider = le
	}

	var statusServer *api.Server
	if cfg.Dashboard.Enabled {
		statusServer = api.NewServer(cfg.Dashboard, mode, provider, nil, *cfg, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		logger.Info("status server started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	if err := engine.Bootstrap(ctx); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	logger.Info("trading bot started",
		"paper", cfg.Trading.Paper,
		"markets", cfg.Trading.Markets,
		"series", cfg.Trading.SeriesSlugs,
		"strategy", cfg.Trading.Strategy,
	)

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, waiting for engine to close positions")
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Error("engine stopped with error", "error", err)
		}
	}

	if statusServer != nil {
		if err := statusServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}
}

// buildPositionStore opens the configured PositionStore backend. A nil,
// nil return (backend "none"/unset) disables persistence entirely.
func buildPositionStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.PositionStore, error) {
	switch cfg.Backend {
	case "redis":
		s, err := store.OpenRedis(ctx, store.RedisStoreConfig{URL: cfg.RedisURL})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	case "file":
		s, err := store.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return s, nil
	case "", "none":
		logger.Warn("position persistence disabled (store.backend unset)")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
