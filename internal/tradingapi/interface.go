// Package tradingapi defines the abstract trading/market-data collaborator
// and a concrete Polymarket CLOB/Gamma-backed implementation built on
// resty.
package tradingapi

import (
	"context"

	"predictengine/internal/model"
)

// TradingAPI is the abstract collaborator the live/paper engines and the
// tick collector depend on. Concrete implementations talk to a real venue;
// the core only depends on this interface.
type TradingAPI interface {
	// GetMarket fetches market metadata by condition ID. Returns
	// *model.ErrNotFound when the venue has no such market.
	GetMarket(ctx context.Context, conditionID string) (model.Market, error)

	// GetOrderBook fetches the current order book for a token. Returns an
	// empty OrderBook (not an error) when the market has no resting
	// liquidity.
	GetOrderBook(ctx context.Context, tokenID string) (model.OrderBook, error)

	// DiscoverSeriesMarkets resolves a set of series slugs to active
	// markets. includeNext additionally resolves the next window's market
	// before it opens (used by the tick collector's lead-time discovery).
	DiscoverSeriesMarkets(ctx context.Context, slugs []string, includeNext bool) ([]SeriesMarket, error)

	// GetBalance fetches the account's current balance (live engine only).
	GetBalance(ctx context.Context, assetType model.AssetType) (model.Balance, error)

	// PlaceOrder submits an order (live engine only).
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResponse, error)
}

// SeriesMarket pairs a discovered condition ID with its (possibly
// date-only) end time, as returned by DiscoverSeriesMarkets.
type SeriesMarket struct {
	ConditionID string
	EndDateISO  string
}

// CandleProvider is the pull-based historical data collaborator used by the
// backtest engine.
type CandleProvider interface {
	GetCandles(ctx context.Context, symbol string, interval model.Interval, startS, endS int64) ([]model.Candle, error)
}

// TradeEvent is a single trade/last-price event surfaced by MarketFeed.
// Non-trade message types never reach this shape; the feed drops them
// internally.
type TradeEvent struct {
	AssetID     string
	Price       string
	Size        string
	Side        model.Side
	TimestampMs int64
}

// MarketFeed is the abstract streaming collaborator the live/paper engine
// and the tick collector depend on. A concrete implementation owns exactly
// one WebSocket connection, serialises all reads/writes through it, and
// auto-reconnects with exponential backoff on transport failure.
type MarketFeed interface {
	// Stream connects (if needed) and returns a channel of trade events.
	// The channel is closed when ctx is cancelled or Close is called; the
	// caller must keep draining it until then.
	Stream(ctx context.Context, assetIDs []string) (<-chan TradeEvent, error)

	// UpdateSubscription replaces the tracked asset ID set and forces an
	// immediate reconnect (bypassing backoff) so the new subscribe message
	// takes effect without waiting out a stale connection.
	UpdateSubscription(ctx context.Context, assetIDs []string) error

	// Close permanently shuts the feed down; Stream's channel closes and
	// further errors are suppressed.
	Close() error
}

// TickRepository is the abstract persistence collaborator the tick
// collector depends on. Init must be idempotent: calling it against an
// already-initialised backend is a no-op, not an error.
type TickRepository interface {
	Init(ctx context.Context) error
	SaveTicks(ctx context.Context, batch []model.Tick) error
	GetTicks(ctx context.Context, assetID string, startMs, endMs int64) ([]model.Tick, error)
	GetTicksByCondition(ctx context.Context, conditionID string, startMs, endMs int64) ([]model.Tick, error)
	GetDistinctConditionIDs(ctx context.Context, startMs, endMs int64) ([]string, error)
	GetTickCount(ctx context.Context) (int64, error)
	Close() error
}
