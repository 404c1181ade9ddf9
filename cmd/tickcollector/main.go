// Command tickcollector runs the long-running tick collection service: it
// subscribes to the Polymarket market-data feed for a set of series and
// persists every trade as a tick, with an HTTP status/metrics endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"predictengine/internal/api"
	"predictengine/internal/collector"
	"predictengine/internal/config"
	"predictengine/internal/feed"
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

	logger := newLogger(cfg.Logging)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()

	client := tradingapi.NewClient(tradingapi.ClientConfig{
		CLOBBaseURL:  cfg.API.CLOBBaseURL,
		GammaBaseURL: cfg.API.GammaBaseURL,
		Metrics:      metrics,
	}, nil, logger)

	marketFeed := feed.New(cfg.API.WSMarketURL, metrics, logger)

	repo, closeRepo, err := buildRepository(ctx, cfg.Collector)
	if err != nil {
		logger.Error("failed to build tick repository", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	coll := collector.New(client, marketFeed, repo, collector.Config{
		StaticConditionIDs: cfg.Collector.StaticConditionIDs,
		SeriesSlugs:        cfg.Collector.SeriesSlugs,
		FlushBatchSize:     cfg.Collector.FlushBatchSize,
		FlushIntervalS:     cfg.Collector.FlushIntervalS,
		DiscoveryLeadS:     cfg.Collector.DiscoveryLeadS,
		HeartbeatInterval:  cfg.Collector.HeartbeatInterval,
		DeadLetterCapacity: cfg.Collector.DeadLetterCapacity,
	}, metrics, logger)

	var statusServer *api.Server
	if cfg.Dashboard.Enabled {
		statusServer = api.NewServer(cfg.Dashboard, "collector", nil, coll, *cfg, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		logger.Info("status server started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	logger.Info("tick collector starting", "series", cfg.Collector.SeriesSlugs, "backend", cfg.Collector.Backend)

	runErr := make(chan error, 1)
	go func() { runErr <- coll.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-runErr:
		if err != nil {
			logger.Error("collector stopped with error", "error", err)
		}
	}

	if statusServer != nil {
		if err := statusServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}
}

func buildRepository(ctx context.Context, cfg config.CollectorConfig) (tradingapi.TickRepository, func(), error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DBUrl)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect postgres: %w", err)
		}
		return collector.NewPGRepository(pool), func() { pool.Close() }, nil
	default:
		dir := cfg.DataDir
		if dir == "" {
			dir = "./data/ticks"
		}
		return collector.NewFileRepository(dir), func() {}, nil
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
