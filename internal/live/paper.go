package live

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/portfolio"
	"predictengine/internal/strategy"
	"predictengine/internal/tradingapi"
)

// PaperEngine runs the live event loop against a virtual cash ledger: no
// real orders are ever placed.
type PaperEngine struct {
	*BaseEngine
	ledger *portfolio.MultiMarket
}

// NewPaperEngine builds a paper-trading engine with initialCapital virtual
// cash and maxPositionPct as the per-market allocation cap.
func NewPaperEngine(api tradingapi.TradingAPI, feed tradingapi.MarketFeed, strat strategy.PredictionMarketStrategy, initialCapital, maxPositionPct decimal.Decimal, cfg EngineConfig, logger *slog.Logger) *PaperEngine {
	ledger := portfolio.NewMultiMarket(initialCapital, maxPositionPct)
	applier := &paperApplier{ledger: ledger}

	if cfg.Mode == "" {
		cfg.Mode = "paper"
	}
	pe := &PaperEngine{ledger: ledger}
	pe.BaseEngine = NewBaseEngine(api, feed, strat, ledger, applier, cfg, logger)
	pe.BaseEngine.SetHooks(pe)
	return pe
}

// Ledger exposes the virtual cash ledger for callers that need the
// concrete portfolio.MultiMarket rather than the StatusProvider view.
func (pe *PaperEngine) Ledger() *portfolio.MultiMarket { return pe.ledger }

// TotalEquity, Capital, Positions, and Trades satisfy api.StatusProvider by
// delegating to the virtual ledger, so the engine itself — not just the
// ledger — can be handed to api.NewServer and also supply DashboardEvents
// through the embedded BaseEngine.
func (pe *PaperEngine) TotalEquity() decimal.Decimal { return pe.ledger.TotalEquity() }
func (pe *PaperEngine) Capital() decimal.Decimal     { return pe.ledger.Capital() }
func (pe *PaperEngine) Positions() map[string]portfolio.MarketPosition {
	return pe.ledger.Positions()
}
func (pe *PaperEngine) Trades() []model.Trade { return pe.ledger.Trades() }

// ShouldSkipMarket is always false for paper trading: the ledger's own
// duplicate-open guard is the only gate needed.
func (pe *PaperEngine) ShouldSkipMarket(cid string) bool { return false }

// OnRotationClose closes every open position at its last known mark
// before the active market set is replaced.
func (pe *PaperEngine) OnRotationClose(ctx context.Context) {
	now := time.Now().Unix()
	for cid, pos := range pe.ledger.Positions() {
		pe.ledger.ClosePosition(cid, pos.LastMark, now)
		pe.BaseEngine.deletePosition(cid)
	}
}

// LogPerformance emits a one-line summary after a rotation.
func (pe *PaperEngine) LogPerformance() {
	pe.Logger().Info("rotation complete", "equity", pe.ledger.TotalEquity(), "positions", len(pe.ledger.Positions()))
}

// paperApplier routes SignalApplier calls straight to the virtual ledger;
// no order is ever placed.
type paperApplier struct {
	ledger *portfolio.MultiMarket
}

func (a *paperApplier) Open(_ context.Context, cid, _ string, side model.Side, price, quantity decimal.Decimal, timestampS int64) bool {
	return a.ledger.OpenPosition(cid, side, price, quantity, timestampS)
}

func (a *paperApplier) Close(_ context.Context, cid, _ string, _ model.Side, price decimal.Decimal, timestampS int64) (model.Trade, bool) {
	return a.ledger.ClosePosition(cid, price, timestampS)
}
