// Package live implements the composed live/paper trading engine: a
// single BaseEngine holds the bootstrap/event-loop/rotation behaviour
// common to both modes, and a small set of per-mode interfaces (rather
// than a template-method base class) supply the differences.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"predictengine/internal/api"
	"predictengine/internal/kelly"
	"predictengine/internal/model"
	"predictengine/internal/store"
	"predictengine/internal/strategy"
	"predictengine/internal/telemetry"
	"predictengine/internal/tradingapi"
)

// PortfolioOps is the subset of portfolio behaviour BaseEngine depends on.
// Both portfolio.MultiMarket and portfolio.LiveMultiMarket satisfy it
// directly.
type PortfolioOps interface {
	HasPosition(cid string) bool
	MaxQuantityFor(price decimal.Decimal) decimal.Decimal
	TotalEquity() decimal.Decimal
	MarkToMarket(cid string, mark decimal.Decimal)
	// RestorePosition installs a persisted position recovered from a
	// store.PositionStore at bootstrap, without re-debiting cash.
	RestorePosition(cid string, pos model.Position)
}

// SignalApplier performs the actual open/close against the portfolio,
// placing a real order first for the live variant.
type SignalApplier interface {
	Open(ctx context.Context, conditionID, tokenID string, side model.Side, price, quantity decimal.Decimal, timestampS int64) bool
	Close(ctx context.Context, conditionID, tokenID string, closeSide model.Side, price decimal.Decimal, timestampS int64) (model.Trade, bool)
}

// Hooks supplies the behaviour that differs between paper and live: the
// composed replacement for what used to be template-method overrides.
type Hooks interface {
	// ShouldSkipMarket reports whether the open path should be skipped for
	// cid even though no position is recorded yet (live: an in-flight
	// order already exists; paper: never).
	ShouldSkipMarket(cid string) bool
	// OnRotationClose runs before a market-set rotation replaces
	// activeMarkets. Paper closes every open position at its last mark;
	// live sells every open position at its last snapshot when
	// ExplicitResolutionSell is set, then re-fetches balance.
	OnRotationClose(ctx context.Context)
	// LogPerformance emits a one-line summary after a rotation completes.
	LogPerformance()
}

// EngineConfig parameterizes a BaseEngine.
type EngineConfig struct {
	ActiveMarkets     []string
	SeriesSlugs       []string
	OrderBookRefreshS int
	MaxHistory        int
	KellyFraction     decimal.Decimal
	MaxTicks          int
	MaxLossPct        decimal.Decimal // zero disables the loss-limit check
	Mode              string          // "paper" or "live", used as the metrics mode label
	Metrics           *telemetry.Metrics // nil disables metrics recording
	Store             store.PositionStore // nil disables position persistence
	// ExplicitResolutionSell tells LiveEngine to issue a SELL-at-last-mark
	// order for every open position before a rotation, instead of
	// assuming the venue auto-redeems the winning outcome on-chain.
	// Unused by PaperEngine, which always closes at rotation.
	ExplicitResolutionSell bool
}

// BaseEngine holds the state and behaviour shared by the paper and live
// trading engines. It is driven entirely from one goroutine (Run's
// dispatcher loop); no internal locking is needed.
type BaseEngine struct {
	api      tradingapi.TradingAPI
	feed     tradingapi.MarketFeed
	strategy strategy.PredictionMarketStrategy
	portfolio PortfolioOps
	applier  SignalApplier
	hooks    Hooks
	logger   *slog.Logger

	seriesSlugs       []string
	orderBookRefreshS int
	maxHistory        int
	kellyFraction     decimal.Decimal
	maxTicks          int
	maxLossPct        decimal.Decimal
	mode              string
	metrics           *telemetry.Metrics
	positionStore     store.PositionStore
	explicitResolutionSell bool

	activeMarkets    []string
	cachedMarkets    map[string]model.Market
	cachedOrderBooks map[string]model.OrderBook
	history          map[string][]model.MarketSnapshot
	lastSnapshot     map[string]model.MarketSnapshot
	tracker          *priceTracker
	positionOutcomes map[string]string // condition_id -> "Yes"|"No"
	endTimeOverrides map[string]string
	currentWindowS   int64

	initialEquity decimal.Decimal
	ticks         int

	dashboardEvents chan api.DashboardEvent
}

// NewBaseEngine wires a BaseEngine. hooks is typically the enclosing
// PaperEngine/LiveEngine itself (set after construction via SetHooks, to
// let the outer type embed *BaseEngine and still implement Hooks against
// it).
func NewBaseEngine(api tradingapi.TradingAPI, feed tradingapi.MarketFeed, strat strategy.PredictionMarketStrategy, ops PortfolioOps, applier SignalApplier, cfg EngineConfig, logger *slog.Logger) *BaseEngine {
	mode := cfg.Mode
	if mode == "" {
		mode = "unknown"
	}
	return &BaseEngine{
		api:               api,
		feed:              feed,
		strategy:          strat,
		portfolio:         ops,
		applier:           applier,
		logger:            logger.With("component", "live_engine"),
		seriesSlugs:       cfg.SeriesSlugs,
		orderBookRefreshS: cfg.OrderBookRefreshS,
		maxHistory:        cfg.MaxHistory,
		kellyFraction:     cfg.KellyFraction,
		maxTicks:          cfg.MaxTicks,
		maxLossPct:        cfg.MaxLossPct,
		mode:              mode,
		metrics:           cfg.Metrics,
		positionStore:     cfg.Store,
		explicitResolutionSell: cfg.ExplicitResolutionSell,
		activeMarkets:     append([]string(nil), cfg.ActiveMarkets...),
		cachedMarkets:     make(map[string]model.Market),
		cachedOrderBooks:  make(map[string]model.OrderBook),
		history:           make(map[string][]model.MarketSnapshot),
		lastSnapshot:      make(map[string]model.MarketSnapshot),
		tracker:           newPriceTracker(),
		positionOutcomes:  make(map[string]string),
		endTimeOverrides:  make(map[string]string),
		initialEquity:     ops.TotalEquity(),
		dashboardEvents:   make(chan api.DashboardEvent, 64),
	}
}

// DashboardEvents returns the channel of trade-lifecycle events this engine
// emits, consumed by a Server attached via api.NewServer to fan them out to
// connected WebSocket clients. Implements the api package's eventSource.
func (be *BaseEngine) DashboardEvents() <-chan api.DashboardEvent { return be.dashboardEvents }

// emitEvent pushes evt onto the dashboard channel without blocking the
// trading loop; a slow or absent consumer just misses events.
func (be *BaseEngine) emitEvent(evt api.DashboardEvent) {
	select {
	case be.dashboardEvents <- evt:
	default:
		be.logger.Warn("dashboard event channel full, dropping event", "type", evt.Type)
	}
}

// SetHooks installs the per-mode behaviour. Called once by the
// constructing PaperEngine/LiveEngine after it has a reference to itself.
func (be *BaseEngine) SetHooks(hooks Hooks) { be.hooks = hooks }

// Bootstrap fetches each active market, registers both outcome tokens
// with the price tracker, and caches an initial order book. Per-market
// failures are logged and skipped; bootstrap never aborts outright.
func (be *BaseEngine) Bootstrap(ctx context.Context) error {
	for _, cid := range be.activeMarkets {
		mkt, err := be.api.GetMarket(ctx, cid)
		if err != nil {
			be.logger.Error("bootstrap: get market failed", "condition_id", cid, "error", err)
			continue
		}
		yesToken, ok := mkt.YesToken()
		if !ok {
			be.logger.Error("bootstrap: market has no yes token", "condition_id", cid)
			continue
		}
		noToken, ok := mkt.NoToken()
		if !ok {
			be.logger.Error("bootstrap: market has no no token", "condition_id", cid)
			continue
		}

		be.cachedMarkets[cid] = mkt
		be.tracker.register(yesToken, cid, true, decimal.Zero)
		be.tracker.register(noToken, cid, false, decimal.Zero)

		book, err := be.api.GetOrderBook(ctx, yesToken)
		if err != nil {
			be.logger.Error("bootstrap: get order book failed", "condition_id", cid, "error", err)
			continue
		}
		be.cachedOrderBooks[cid] = book

		be.restorePosition(cid)
	}
	return nil
}

// restorePosition loads cid's persisted position, if any, and installs it
// into the portfolio and positionOutcomes so a restart resumes tracking an
// already-open position instead of losing it.
func (be *BaseEngine) restorePosition(cid string) {
	if be.positionStore == nil {
		return
	}
	pos, err := be.positionStore.LoadPosition(cid)
	if err != nil {
		be.logger.Error("bootstrap: load position failed", "condition_id", cid, "error", err)
		return
	}
	if pos == nil {
		return
	}
	be.portfolio.RestorePosition(cid, *pos)
	if pos.Outcome != "" {
		be.positionOutcomes[cid] = pos.Outcome
	}
	be.logger.Info("restored persisted position", "condition_id", cid, "outcome", pos.Outcome, "quantity", pos.Quantity)
}

// Run starts the feed and drives the single-dispatcher event loop until
// ctx is cancelled, the feed closes, max_ticks is reached, or (live only)
// the loss limit is breached. Open positions are closed before returning.
func (be *BaseEngine) Run(ctx context.Context) error {
	if be.hooks == nil {
		return fmt.Errorf("live: BaseEngine.Run called before SetHooks")
	}

	events, err := be.feed.Stream(ctx, be.allAssetIDs())
	if err != nil {
		return fmt.Errorf("live: stream: %w", err)
	}

	var refreshTicker, rotationTicker *time.Ticker
	if be.orderBookRefreshS > 0 {
		refreshTicker = time.NewTicker(time.Duration(be.orderBookRefreshS) * time.Second)
		defer refreshTicker.Stop()
	}
	if len(be.seriesSlugs) > 0 {
		rotationTicker = time.NewTicker(time.Second)
		defer rotationTicker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			be.closeAllPositions(context.Background())
			return ctx.Err()

		case evt, ok := <-events:
			if !ok {
				be.closeAllPositions(context.Background())
				return fmt.Errorf("live: market feed closed")
			}
			be.onPriceUpdate(ctx, evt)
			be.ticks++
			if be.maxTicks > 0 && be.ticks >= be.maxTicks {
				be.closeAllPositions(context.Background())
				return nil
			}
			if be.maxLossPct.IsPositive() && be.initialEquity.IsPositive() {
				equity := be.portfolio.TotalEquity()
				floor := be.initialEquity.Mul(decimal.NewFromInt(1).Sub(be.maxLossPct))
				if equity.LessThan(floor) {
					be.logger.Warn("loss limit breached, shutting down", "equity", equity, "floor", floor)
					be.closeAllPositions(context.Background())
					return nil
				}
			}

		case <-tickerChan(refreshTicker):
			be.refreshOrderBooks(ctx)

		case <-tickerChan(rotationTicker):
			be.maybeRotate(ctx)
		}
	}
}

func tickerChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (be *BaseEngine) allAssetIDs() []string {
	ids := make([]string, 0, len(be.tracker.assets))
	for id := range be.tracker.assets {
		ids = append(ids, id)
	}
	return ids
}

func (be *BaseEngine) onPriceUpdate(ctx context.Context, evt tradingapi.TradeEvent) {
	price, err := decimal.NewFromString(evt.Price)
	if err != nil {
		return
	}
	cid, yes, no, ok := be.tracker.update(evt.AssetID, price)
	if !ok {
		return
	}

	mkt, known := be.cachedMarkets[cid]
	if !known {
		return
	}
	book := be.cachedOrderBooks[cid]
	endDate := mkt.EndDateISO
	if override, has := be.endTimeOverrides[cid]; has {
		endDate = override
	}

	snap, err := model.NewMarketSnapshot(cid, mkt.Question, time.Now().Unix(), yes, no, book, decimal.Zero, decimal.Zero, endDate)
	if err != nil {
		be.logger.Error("snapshot construction failed", "condition_id", cid, "error", err)
		return
	}

	priorHistory := be.history[cid]
	sig := be.strategy.OnSnapshot(snap, priorHistory)

	be.lastSnapshot[cid] = snap
	be.appendHistory(cid, snap)

	if sig != nil {
		be.applySignal(ctx, sig, snap)
	}

	if outcome, open := be.positionOutcomes[cid]; open {
		mark := yes
		if outcome == "No" {
			mark = no
		}
		be.portfolio.MarkToMarket(cid, mark)
		if be.metrics != nil {
			be.metrics.PortfolioEquity.WithLabelValues(be.mode).Set(be.toFloat(be.portfolio.TotalEquity()))
		}
	}
}

func (be *BaseEngine) appendHistory(cid string, snap model.MarketSnapshot) {
	h := append(be.history[cid], snap)
	if be.maxHistory > 0 && len(h) > be.maxHistory {
		h = append([]model.MarketSnapshot(nil), h[len(h)-be.maxHistory:]...)
	}
	be.history[cid] = h
}

// applySignal acts on a strategy signal for snap's market. With a position
// open, a SELL closes it and a BUY is ignored. With no position, a BUY buys
// the YES side and a SELL buys the NO side (openPosition picks the token
// and price); the open is skipped when the portfolio already holds cid or
// the Hooks ask to skip it.
func (be *BaseEngine) applySignal(ctx context.Context, sig *model.Signal, snap model.MarketSnapshot) {
	cid := snap.ConditionID
	if outcome, open := be.positionOutcomes[cid]; open {
		if sig.Side == model.Sell {
			be.closePosition(ctx, cid, outcome, snap)
		}
		return
	}
	if be.portfolio.HasPosition(cid) || be.hooks.ShouldSkipMarket(cid) {
		return
	}
	be.openPosition(ctx, cid, sig, snap)
}

func (be *BaseEngine) openPosition(ctx context.Context, cid string, sig *model.Signal, snap model.MarketSnapshot) {
	outcome := "Yes"
	buyPrice := snap.YesPrice
	if sig.Side == model.Sell {
		outcome = "No"
		buyPrice = snap.NoPrice
	}

	mkt := be.cachedMarkets[cid]
	var tokenID string
	var ok bool
	if outcome == "Yes" {
		tokenID, ok = mkt.YesToken()
	} else {
		tokenID, ok = mkt.NoToken()
	}
	if !ok {
		return
	}

	if book, err := be.api.GetOrderBook(ctx, tokenID); err == nil {
		be.cachedOrderBooks[cid] = book
	}

	estProb := kelly.EstimatedProbability(buyPrice, sig.Strength)
	fraction := kelly.Fraction(estProb, buyPrice, be.kellyFraction)
	if !fraction.IsPositive() {
		return
	}
	maxQty := be.portfolio.MaxQuantityFor(buyPrice)
	qty := kelly.Quantity(maxQty, fraction)
	if !qty.IsPositive() {
		return
	}

	if !be.applier.Open(ctx, cid, tokenID, model.Buy, buyPrice, qty, snap.TimestampS) {
		return
	}
	be.positionOutcomes[cid] = outcome
	be.savePosition(cid, outcome, buyPrice, qty, snap.TimestampS)
	if be.metrics != nil {
		be.metrics.TradesOpened.WithLabelValues(be.mode).Inc()
		be.metrics.PortfolioEquity.WithLabelValues(be.mode).Set(be.toFloat(be.portfolio.TotalEquity()))
	}
	be.emitEvent(api.DashboardEvent{
		Type:        "trade_opened",
		Timestamp:   time.Now(),
		ConditionID: cid,
		Data:        api.NewTradeOpenedEvent(cid, outcome, be.toFloat(buyPrice), be.toFloat(qty)),
	})
}

func (be *BaseEngine) closePosition(ctx context.Context, cid, outcome string, snap model.MarketSnapshot) {
	mkt := be.cachedMarkets[cid]
	var tokenID string
	var ok bool
	price := snap.YesPrice
	if outcome == "Yes" {
		tokenID, ok = mkt.YesToken()
	} else {
		tokenID, ok = mkt.NoToken()
		price = snap.NoPrice
	}
	if !ok {
		return
	}

	if book, err := be.api.GetOrderBook(ctx, tokenID); err == nil {
		be.cachedOrderBooks[cid] = book
	}

	trade, closed := be.applier.Close(ctx, cid, tokenID, model.Sell, price, snap.TimestampS)
	if !closed {
		return
	}
	delete(be.positionOutcomes, cid)
	be.deletePosition(cid)
	if be.metrics != nil {
		be.metrics.TradesClosed.WithLabelValues(be.mode).Inc()
		be.metrics.PortfolioEquity.WithLabelValues(be.mode).Set(be.toFloat(be.portfolio.TotalEquity()))
	}
	be.emitEvent(api.DashboardEvent{
		Type:        "trade_closed",
		Timestamp:   time.Now(),
		ConditionID: cid,
		Data:        api.NewTradeClosedEvent(cid, be.toFloat(price), be.toFloat(trade.Pnl), be.toFloat(trade.PnlPct)),
	})
}

// savePosition persists cid's newly opened position so a restart can
// recover it via restorePosition. A nil positionStore is a no-op.
func (be *BaseEngine) savePosition(cid, outcome string, price, quantity decimal.Decimal, timestampS int64) {
	if be.positionStore == nil {
		return
	}
	pos := model.Position{
		Symbol:     cid,
		Side:       model.Buy,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTimeS: timestampS,
		Outcome:    outcome,
	}
	if err := be.positionStore.SavePosition(cid, pos); err != nil {
		be.logger.Error("save position failed", "condition_id", cid, "error", err)
	}
}

// deletePosition removes cid's persisted position after a close. A nil
// positionStore is a no-op.
func (be *BaseEngine) deletePosition(cid string) {
	if be.positionStore == nil {
		return
	}
	if err := be.positionStore.DeletePosition(cid); err != nil {
		be.logger.Error("delete position failed", "condition_id", cid, "error", err)
	}
}

// toFloat converts a decimal to the float64 prometheus requires, for
// metrics reporting only; never used for money arithmetic.
func (be *BaseEngine) toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (be *BaseEngine) closeAllPositions(ctx context.Context) {
	for cid, outcome := range be.positionOutcomes {
		snap, ok := be.lastSnapshot[cid]
		if !ok {
			continue
		}
		be.closePosition(ctx, cid, outcome, snap)
	}
}

func (be *BaseEngine) refreshOrderBooks(ctx context.Context) {
	for _, cid := range be.activeMarkets {
		mkt, ok := be.cachedMarkets[cid]
		if !ok {
			continue
		}
		yesToken, ok := mkt.YesToken()
		if !ok {
			continue
		}
		book, err := be.api.GetOrderBook(ctx, yesToken)
		if err != nil {
			be.logger.Warn("order book refresh failed", "condition_id", cid, "error", err)
			continue
		}
		be.cachedOrderBooks[cid] = book
	}
}

func (be *BaseEngine) maybeRotate(ctx context.Context) {
	windowS := time.Now().Unix() / 300
	if windowS == be.currentWindowS {
		return
	}
	be.currentWindowS = windowS
	be.rotateMarkets(ctx)
}

func (be *BaseEngine) rotateMarkets(ctx context.Context) {
	be.hooks.OnRotationClose(ctx)

	discovered, err := be.api.DiscoverSeriesMarkets(ctx, be.seriesSlugs, false)
	if err != nil || len(discovered) == 0 {
		be.logger.Warn("rotation aborted, discovery failed or empty", "error", err)
		return
	}

	be.activeMarkets = be.activeMarkets[:0]
	be.cachedMarkets = make(map[string]model.Market)
	be.cachedOrderBooks = make(map[string]model.OrderBook)
	be.history = make(map[string][]model.MarketSnapshot)
	be.lastSnapshot = make(map[string]model.MarketSnapshot)
	be.positionOutcomes = make(map[string]string)
	be.endTimeOverrides = make(map[string]string)
	be.tracker.reset()

	for _, sm := range discovered {
		be.activeMarkets = append(be.activeMarkets, sm.ConditionID)
		if sm.EndDateISO != "" {
			be.endTimeOverrides[sm.ConditionID] = sm.EndDateISO
		}
	}

	if err := be.Bootstrap(ctx); err != nil {
		be.logger.Error("rotation bootstrap failed", "error", err)
	}

	if err := be.feed.UpdateSubscription(ctx, be.allAssetIDs()); err != nil {
		be.logger.Error("update subscription failed", "error", err)
	}

	be.hooks.LogPerformance()
}

// Equity returns the portfolio's current total equity.
func (be *BaseEngine) Equity() decimal.Decimal { return be.portfolio.TotalEquity() }

// Logger exposes the engine's component logger for Hooks implementations.
func (be *BaseEngine) Logger() *slog.Logger { return be.logger }
