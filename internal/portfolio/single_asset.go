// Package portfolio implements the two ledger variants described in
// SPEC_FULL.md §4.1: a single-asset portfolio used by the backtest engine
// (at most one open position per symbol, supporting multiple symbols for
// the multi-asset backtest variant) and a multi-market portfolio used by
// the live/paper trading engines (at most one position per condition ID).
package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

// SingleAsset is the backtest engine's ledger. It tracks at most one open
// position per symbol (a single symbol for Engine, several for
// MultiAssetEngine) and accumulates closed Trades.
type SingleAsset struct {
	cash      decimal.Decimal
	positions map[string]model.Position
	trades    []model.Trade
}

// NewSingleAsset creates a portfolio seeded with the given starting cash.
func NewSingleAsset(initialCapital decimal.Decimal) *SingleAsset {
	return &SingleAsset{
		cash:      initialCapital,
		positions: make(map[string]model.Position),
	}
}

// Cash returns the current uninvested cash balance.
func (p *SingleAsset) Cash() decimal.Decimal { return p.cash }

// Trades returns all closed trades in close order.
func (p *SingleAsset) Trades() []model.Trade { return p.trades }

// HasOpenPosition reports whether symbol currently has an open position.
func (p *SingleAsset) HasOpenPosition(symbol string) bool {
	_, ok := p.positions[symbol]
	return ok
}

// Position returns the open position for symbol, if any.
func (p *SingleAsset) Position(symbol string) (model.Position, bool) {
	pos, ok := p.positions[symbol]
	return pos, ok
}

// Open records a new position, deducting cost+fee from cash. Cost and fee
// are computed by the caller (internal/backtest's execution helpers); Open
// itself only enforces "no duplicate position for this symbol" and
// debits cash.
func (p *SingleAsset) Open(symbol string, side model.Side, price, quantity, fee decimal.Decimal, timestampS int64) error {
	if p.HasOpenPosition(symbol) {
		return fmt.Errorf("portfolio: position already open for %s", symbol)
	}
	cost := price.Mul(quantity)
	p.cash = p.cash.Sub(cost).Sub(fee)
	p.positions[symbol] = model.Position{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTimeS: timestampS,
	}
	return nil
}

// Close closes symbol's open position at exitPrice, charging exitFee, and
// returns the resulting Trade. Returns an error if no position is open.
func (p *SingleAsset) Close(symbol string, exitPrice, exitFee decimal.Decimal, timestampS int64) (model.Trade, error) {
	pos, ok := p.positions[symbol]
	if !ok {
		return model.Trade{}, fmt.Errorf("portfolio: no open position for %s", symbol)
	}
	delete(p.positions, symbol)

	entryFee := decimal.Zero // entry fee was already debited at Open and is not re-derivable here;
	// callers that track the entry fee separately pass it to
	// CloseWithEntryFee when they need accurate pnl.
	trade := pos.Close(exitPrice, entryFee, exitFee, timestampS)

	proceeds := pos.EntryPrice.Mul(pos.Quantity).Add(trade.Pnl)
	p.cash = p.cash.Add(proceeds)

	p.trades = append(p.trades, trade)
	return trade, nil
}

// CloseWithEntryFee behaves like Close but takes the entry fee that was
// charged when the position was opened, so Trade.Pnl correctly subtracts
// it: pnl = (direction-adjusted price diff * quantity) - entry_fee -
// exit_fee.
func (p *SingleAsset) CloseWithEntryFee(symbol string, exitPrice, entryFee, exitFee decimal.Decimal, timestampS int64) (model.Trade, error) {
	pos, ok := p.positions[symbol]
	if !ok {
		return model.Trade{}, fmt.Errorf("portfolio: no open position for %s", symbol)
	}
	delete(p.positions, symbol)

	trade := pos.Close(exitPrice, entryFee, exitFee, timestampS)

	proceeds := pos.EntryPrice.Mul(pos.Quantity).Add(trade.Pnl)
	p.cash = p.cash.Add(proceeds)

	p.trades = append(p.trades, trade)
	return trade, nil
}

// ForceCloseAll force-closes every open position at the given last price
// per symbol, used at the end of a backtest run. Symbols without an entry
// in lastPrices are left open (should not happen in practice: the engine
// always supplies the final close for every symbol it traded).
func (p *SingleAsset) ForceCloseAll(lastPrices map[string]decimal.Decimal, entryFees map[string]decimal.Decimal, timestampS int64) []model.Trade {
	var closed []model.Trade
	for symbol := range p.positions {
		price, ok := lastPrices[symbol]
		if !ok {
			continue
		}
		entryFee := entryFees[symbol]
		trade, err := p.CloseWithEntryFee(symbol, price, entryFee, decimal.Zero, timestampS)
		if err == nil {
			closed = append(closed, trade)
		}
	}
	return closed
}

// Equity computes mark-to-market total equity given current marks for all
// open positions (used by the circuit breaker to measure drawdown).
func (p *SingleAsset) Equity(marks map[string]decimal.Decimal) decimal.Decimal {
	equity := p.cash
	for symbol, pos := range p.positions {
		mark, ok := marks[symbol]
		if !ok {
			mark = pos.EntryPrice
		}
		var unrealized decimal.Decimal
		if pos.Side == model.Sell {
			unrealized = pos.EntryPrice.Sub(mark).Mul(pos.Quantity)
		} else {
			unrealized = mark.Sub(pos.EntryPrice).Mul(pos.Quantity)
		}
		equity = equity.Add(pos.EntryPrice.Mul(pos.Quantity)).Add(unrealized)
	}
	return equity
}
