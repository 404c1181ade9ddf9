package portfolio

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/tradingapi"
)

// LiveMultiMarket wraps MultiMarket's accounting with real order placement
// via a tradingapi.TradingAPI. Cash is never pre-debited: a position is
// only recorded (and cash debited) once the broker confirms the order; on
// failure the method records nothing and the caller's trade is dropped.
type LiveMultiMarket struct {
	ledger *MultiMarket
	api    tradingapi.TradingAPI
	logger *slog.Logger

	balance decimal.Decimal // last known balance, refreshed before each trade
}

// NewLiveMultiMarket creates a live ledger backed by api. initialBalance
// seeds the cached balance until the first RefreshBalance call.
func NewLiveMultiMarket(api tradingapi.TradingAPI, maxPositionPct, initialBalance decimal.Decimal, logger *slog.Logger) *LiveMultiMarket {
	return &LiveMultiMarket{
		ledger:  NewMultiMarket(initialBalance, maxPositionPct),
		api:     api,
		logger:  logger.With("component", "live_portfolio"),
		balance: initialBalance,
	}
}

// RefreshBalance re-fetches the account balance from the TradingAPI. On
// failure it logs and keeps the last known balance rather than propagating
// a transient API error into the trading loop.
func (p *LiveMultiMarket) RefreshBalance(ctx context.Context) decimal.Decimal {
	bal, err := p.api.GetBalance(ctx, model.AssetCollateral)
	if err != nil {
		p.logger.Warn("refresh balance failed, using last known value", "error", err, "last_known", p.balance)
		return p.balance
	}
	p.balance = bal.Amount
	p.ledger.cash = bal.Amount
	return p.balance
}

// Capital returns the last known cash balance.
func (p *LiveMultiMarket) Capital() decimal.Decimal { return p.ledger.Capital() }

// TotalEquity returns cash + sum(entry*qty) + sum(unrealised).
func (p *LiveMultiMarket) TotalEquity() decimal.Decimal { return p.ledger.TotalEquity() }

// Positions returns a snapshot of open positions.
func (p *LiveMultiMarket) Positions() map[string]MarketPosition { return p.ledger.Positions() }

// Trades returns all confirmed closed trades.
func (p *LiveMultiMarket) Trades() []model.Trade { return p.ledger.Trades() }

// HasPosition reports whether cid has an open position.
func (p *LiveMultiMarket) HasPosition(cid string) bool { return p.ledger.HasPosition(cid) }

// MaxQuantityFor returns the max affordable integer quantity at price.
func (p *LiveMultiMarket) MaxQuantityFor(price decimal.Decimal) decimal.Decimal {
	return p.ledger.MaxQuantityFor(price)
}

// MarkToMarket updates unrealized pnl for cid.
func (p *LiveMultiMarket) MarkToMarket(cid string, mark decimal.Decimal) { p.ledger.MarkToMarket(cid, mark) }

// RestorePosition installs a previously persisted position directly into
// the underlying ledger, without placing an order: the position was
// already opened on-chain before the process restarted.
func (p *LiveMultiMarket) RestorePosition(cid string, pos model.Position) {
	p.ledger.RestorePosition(cid, pos)
}

// OpenPosition places a real BUY/SELL order via the TradingAPI and, only on
// success, records the position in the underlying ledger. Duplicate and
// allocation-cap rejections happen before the API call (no point paying
// for a network round trip the ledger will reject anyway); an API error
// afterwards means no position is recorded and cash stays untouched.
func (p *LiveMultiMarket) OpenPosition(ctx context.Context, cid, tokenID string, side model.Side, price, quantity decimal.Decimal, timestampS int64) (model.OrderResponse, bool) {
	if p.ledger.HasPosition(cid) {
		return model.OrderResponse{}, false
	}
	p.RefreshBalance(ctx)
	cost := price.Mul(quantity)
	if cost.GreaterThan(p.ledger.cash.Mul(p.ledger.maxPositionPct)) || cost.GreaterThan(p.ledger.cash) {
		return model.OrderResponse{}, false
	}

	resp, err := p.api.PlaceOrder(ctx, model.OrderRequest{
		TokenID:   tokenID,
		Side:      side,
		Price:     price,
		Size:      quantity,
		OrderType: model.OrderTypeLimit,
	})
	if err != nil {
		p.logger.Error("open order failed", "condition_id", cid, "error", err)
		return model.OrderResponse{}, false
	}

	opened := p.ledger.OpenPosition(cid, side, price, quantity, timestampS)
	if !opened {
		// Should not happen (we already checked above), but stay defensive:
		// don't leave an unaccounted-for fill.
		p.logger.Error("ledger rejected open after order placed", "condition_id", cid, "order_id", resp.OrderID)
	}
	return resp, opened
}

// ClosePosition places a real closing order via the TradingAPI and, only
// on success, records the Trade.
func (p *LiveMultiMarket) ClosePosition(ctx context.Context, cid, tokenID string, closeSide model.Side, price decimal.Decimal, timestampS int64) (model.Trade, bool) {
	pos, ok := p.ledger.positions[cid]
	if !ok {
		return model.Trade{}, false
	}

	resp, err := p.api.PlaceOrder(ctx, model.OrderRequest{
		TokenID:   tokenID,
		Side:      closeSide,
		Price:     price,
		Size:      pos.Quantity,
		OrderType: model.OrderTypeLimit,
	})
	if err != nil {
		p.logger.Error("close order failed", "condition_id", cid, "error", err)
		return model.Trade{}, false
	}

	trade, ok := p.ledger.ClosePosition(cid, price, timestampS)
	if ok {
		trade.OrderID = resp.OrderID
		trade.Filled = resp.Filled
	}
	return trade, ok
}
