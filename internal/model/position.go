package model

import "github.com/shopspring/decimal"

// Position is a mutable open holding. It is owned exclusively by the
// portfolio that created it; the only mutation after creation is
// mark-to-market bookkeeping performed by the portfolio (LastMark and
// UnrealizedPnl live on the portfolio-side position wrapper, not here: this
// struct stays the immutable-looking entry record, with Close producing a
// Trade).
type Position struct {
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	EntryTimeS int64
	// Outcome is the prediction-market outcome token held ("Yes"/"No").
	// Empty for non-prediction-market callers (e.g. the backtest engine).
	Outcome string
}

// Close computes the Trade produced by closing this position at exitPrice/exitTimeS,
// charging entryFee (already paid at open, carried for pnl accounting) and exitFee.
func (p Position) Close(exitPrice decimal.Decimal, entryFee, exitFee decimal.Decimal, exitTimeS int64) Trade {
	return NewTrade(p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.EntryTimeS, exitPrice, exitTimeS, entryFee, exitFee)
}
