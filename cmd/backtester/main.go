// Command backtester replays historical candles from a Binance-compatible
// klines endpoint through a registered Strategy and prints the resulting
// performance metrics per symbol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"predictengine/internal/backtest"
	"predictengine/internal/config"
	"predictengine/internal/model"
	"predictengine/internal/strategy"
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

	if len(cfg.Backtest.Symbols) == 0 {
		logger.Error("backtest.symbols is empty")
		os.Exit(1)
	}

	interval := model.Interval(cfg.Backtest.Interval)
	if !interval.Valid() {
		logger.Error("invalid backtest.interval", "interval", cfg.Backtest.Interval)
		os.Exit(1)
	}

	start, err := time.Parse(time.RFC3339, cfg.Backtest.StartISO)
	if err != nil {
		logger.Error("invalid backtest.start", "error", err)
		os.Exit(1)
	}
	end, err := time.Parse(time.RFC3339, cfg.Backtest.EndISO)
	if err != nil {
		logger.Error("invalid backtest.end", "error", err)
		os.Exit(1)
	}

	candleClient := tradingapi.NewCandleClient(tradingapi.CandleClientConfig{BaseURL: cfg.Backtest.CandleBaseURL})

	factory := strategy.DefaultFactory()
	execCfg := cfg.Execution.ToModel()
	riskCfg := cfg.Risk.ToModel()
	initialCapital := decimal.NewFromFloat(cfg.Backtest.InitialCapital)

	ctx := context.Background()

	if len(cfg.Backtest.Symbols) == 1 {
		symbol := cfg.Backtest.Symbols[0]
		candles, err := candleClient.GetCandles(ctx, symbol, interval, start.Unix(), end.Unix())
		if err != nil {
			logger.Error("fetch candles failed", "symbol", symbol, "error", err)
			os.Exit(1)
		}

		strat, err := factory.Build(cfg.Backtest.Strategy)
		if err != nil {
			logger.Error("build strategy failed", "error", err)
			os.Exit(1)
		}

		eng, err := backtest.NewEngine(symbol, interval, strat, initialCapital, execCfg, riskCfg)
		if err != nil {
			logger.Error("construct engine failed", "error", err)
			os.Exit(1)
		}

		result, err := eng.Run(candles)
		if err != nil {
			logger.Error("backtest run failed", "error", err)
			os.Exit(1)
		}
		printResult(result)
		return
	}

	strategies := make(map[string]strategy.Strategy, len(cfg.Backtest.Symbols))
	var allCandles []model.Candle
	for _, symbol := range cfg.Backtest.Symbols {
		candles, err := candleClient.GetCandles(ctx, symbol, interval, start.Unix(), end.Unix())
		if err != nil {
			logger.Error("fetch candles failed", "symbol", symbol, "error", err)
			os.Exit(1)
		}
		allCandles = append(allCandles, candles...)

		strat, err := factory.Build(cfg.Backtest.Strategy)
		if err != nil {
			logger.Error("build strategy failed", "error", err)
			os.Exit(1)
		}
		strategies[symbol] = strat
	}

	eng, err := backtest.NewMultiAssetEngine(strategies, initialCapital, execCfg, riskCfg)
	if err != nil {
		logger.Error("construct multi-asset engine failed", "error", err)
		os.Exit(1)
	}

	results, err := eng.Run(allCandles)
	if err != nil {
		logger.Error("backtest run failed", "error", err)
		os.Exit(1)
	}
	for _, symbol := range cfg.Backtest.Symbols {
		printResult(results[symbol])
	}
}

func printResult(r model.BacktestResult) {
	pct := decimal.NewFromInt(100)
	fmt.Printf("%s (%s): initial=%s final=%s trades=%d return=%s%% win_rate=%s%% max_drawdown=%s%% sharpe=%s\n",
		r.Symbol, r.StrategyName, r.InitialCapital, r.FinalCapital, r.Metrics.TotalTrades,
		r.Metrics.TotalReturn.Mul(pct), r.Metrics.WinRate.Mul(pct), r.Metrics.MaxDrawdown.Mul(pct), r.Metrics.SharpeRatio)
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
