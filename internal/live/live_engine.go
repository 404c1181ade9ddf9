package live

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/portfolio"
	"predictengine/internal/strategy"
	"predictengine/internal/tradingapi"
)

// LiveEngine runs the event loop against a real account balance, placing
// real orders through a tradingapi.TradingAPI before recording a position.
type LiveEngine struct {
	*BaseEngine
	ledger *portfolio.LiveMultiMarket
}

// NewLiveEngine builds a live-trading engine. initialBalance seeds the
// cached balance until the first RefreshBalance call, which the ledger
// makes before each open and this engine makes at each rotation.
func NewLiveEngine(api tradingapi.TradingAPI, feed tradingapi.MarketFeed, strat strategy.PredictionMarketStrategy, maxPositionPct, initialBalance decimal.Decimal, cfg EngineConfig, logger *slog.Logger) *LiveEngine {
	ledger := portfolio.NewLiveMultiMarket(api, maxPositionPct, initialBalance, logger)
	applier := &liveApplier{ledger: ledger}

	if cfg.Mode == "" {
		cfg.Mode = "live"
	}
	le := &LiveEngine{ledger: ledger}
	le.BaseEngine = NewBaseEngine(api, feed, strat, ledger, applier, cfg, logger)
	le.BaseEngine.SetHooks(le)
	return le
}

// Ledger exposes the account-backed ledger for callers that need the
// concrete portfolio.LiveMultiMarket rather than the StatusProvider view.
func (le *LiveEngine) Ledger() *portfolio.LiveMultiMarket { return le.ledger }

// TotalEquity, Capital, Positions, and Trades satisfy api.StatusProvider by
// delegating to the account-backed ledger, so the engine itself — not just
// the ledger — can be handed to api.NewServer and also supply
// DashboardEvents through the embedded BaseEngine.
func (le *LiveEngine) TotalEquity() decimal.Decimal { return le.ledger.TotalEquity() }
func (le *LiveEngine) Capital() decimal.Decimal     { return le.ledger.Capital() }
func (le *LiveEngine) Positions() map[string]portfolio.MarketPosition {
	return le.ledger.Positions()
}
func (le *LiveEngine) Trades() []model.Trade { return le.ledger.Trades() }

// ShouldSkipMarket returns true for any market with an open position, to
// avoid a double-entry attempt while a prior fill is still being recorded.
func (le *LiveEngine) ShouldSkipMarket(cid string) bool { return le.ledger.HasPosition(cid) }

// OnRotationClose issues an explicit SELL-at-last-mark order for every open
// position before the active market set is replaced, unless
// ExplicitResolutionSell is disabled for a venue that is known to
// auto-redeem the winning outcome on-chain. Either way it finishes by
// re-fetching the account balance so the next window starts from an
// accurate cash figure.
func (le *LiveEngine) OnRotationClose(ctx context.Context) {
	if le.BaseEngine.explicitResolutionSell {
		for cid, outcome := range le.BaseEngine.positionOutcomes {
			snap, ok := le.BaseEngine.lastSnapshot[cid]
			if !ok {
				continue
			}
			le.BaseEngine.closePosition(ctx, cid, outcome, snap)
		}
	}
	le.ledger.RefreshBalance(ctx)
}

// LogPerformance emits a one-line summary after a rotation.
func (le *LiveEngine) LogPerformance() {
	le.Logger().Info("rotation complete", "equity", le.ledger.TotalEquity(), "positions", len(le.ledger.Positions()))
}

// liveApplier routes SignalApplier calls through the live ledger, which
// places a real order before recording anything.
type liveApplier struct {
	ledger *portfolio.LiveMultiMarket
}

func (a *liveApplier) Open(ctx context.Context, cid, tokenID string, side model.Side, price, quantity decimal.Decimal, timestampS int64) bool {
	_, ok := a.ledger.OpenPosition(ctx, cid, tokenID, side, price, quantity, timestampS)
	return ok
}

func (a *liveApplier) Close(ctx context.Context, cid, tokenID string, closeSide model.Side, price decimal.Decimal, timestampS int64) (model.Trade, bool) {
	return a.ledger.ClosePosition(ctx, cid, tokenID, closeSide, price, timestampS)
}
