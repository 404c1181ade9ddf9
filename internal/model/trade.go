package model

import "github.com/shopspring/decimal"

// Trade is an immutable closed round-trip record. Pnl and PnlPct are
// derived at construction, not stored fields recomputed elsewhere, so every
// Trade is internally consistent by construction: pnl == pnl_pct *
// (entry_price*quantity + entry_fee) up to decimal rounding.
type Trade struct {
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	EntryTimeS int64
	ExitPrice  decimal.Decimal
	ExitTimeS  int64
	EntryFee   decimal.Decimal
	ExitFee    decimal.Decimal
	Pnl        decimal.Decimal
	PnlPct     decimal.Decimal

	// OrderID and Filled are populated only by the live portfolio, which
	// places a real order via TradingAPI on open and close and records the
	// broker-returned order ID and filled quantity here.
	OrderID string
	Filled  decimal.Decimal
}

// NewTrade computes the side-aware pnl and constructs a Trade.
func NewTrade(symbol string, side Side, quantity, entryPrice decimal.Decimal, entryTimeS int64, exitPrice decimal.Decimal, exitTimeS int64, entryFee, exitFee decimal.Decimal) Trade {
	var diff decimal.Decimal
	switch side {
	case Sell:
		diff = entryPrice.Sub(exitPrice)
	default: // Buy
		diff = exitPrice.Sub(entryPrice)
	}
	pnl := diff.Mul(quantity).Sub(entryFee).Sub(exitFee)

	denom := entryPrice.Mul(quantity).Add(entryFee)
	var pnlPct decimal.Decimal
	if !denom.IsZero() {
		pnlPct = pnl.Div(denom)
	}

	return Trade{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryTimeS: entryTimeS,
		ExitPrice:  exitPrice,
		ExitTimeS:  exitTimeS,
		EntryFee:   entryFee,
		ExitFee:    exitFee,
		Pnl:        pnl,
		PnlPct:     pnlPct,
	}
}
