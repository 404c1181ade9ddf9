package portfolio

import (
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

// MarketPosition is one open holding inside a MultiMarket portfolio,
// tracking mark-to-market state in addition to the immutable entry fields
// in model.Position.
type MarketPosition struct {
	model.Position
	ConditionID   string
	UnrealizedPnl decimal.Decimal
	LastMark      decimal.Decimal
}

// MultiMarket is the live/paper trading ledger: at most one position per
// condition ID, with per-market mark-to-market.
type MultiMarket struct {
	cash           decimal.Decimal
	maxPositionPct decimal.Decimal // allocation cap as a fraction of cash
	positions      map[string]*MarketPosition
	trades         []model.Trade
}

// NewMultiMarket creates a paper-trading ledger with the given starting
// cash and per-market allocation cap, expressed as a fraction of cash that
// a single position's cost may not exceed.
func NewMultiMarket(initialCapital, maxPositionPct decimal.Decimal) *MultiMarket {
	return &MultiMarket{
		cash:           initialCapital,
		maxPositionPct: maxPositionPct,
		positions:      make(map[string]*MarketPosition),
	}
}

// Capital returns the uninvested cash balance.
func (p *MultiMarket) Capital() decimal.Decimal { return p.cash }

// Positions returns a snapshot copy of all open positions, keyed by
// condition ID.
func (p *MultiMarket) Positions() map[string]MarketPosition {
	out := make(map[string]MarketPosition, len(p.positions))
	for cid, pos := range p.positions {
		out[cid] = *pos
	}
	return out
}

// Trades returns all closed trades in close order.
func (p *MultiMarket) Trades() []model.Trade { return p.trades }

// HasPosition reports whether a position is open for cid.
func (p *MultiMarket) HasPosition(cid string) bool {
	_, ok := p.positions[cid]
	return ok
}

// MaxQuantityFor returns the largest integer quantity affordable at price
// within the allocation cap and available cash.
func (p *MultiMarket) MaxQuantityFor(price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	capByAllocation := p.cash.Mul(p.maxPositionPct)
	budget := capByAllocation
	if p.cash.LessThan(budget) {
		budget = p.cash
	}
	return budget.Div(price).Floor()
}

// RestorePosition installs a previously persisted position directly into
// the ledger, bypassing the allocation-cap and cash checks OpenPosition
// applies: the cash for it was already spent before the process
// restarted, so there is nothing left to debit.
func (p *MultiMarket) RestorePosition(cid string, pos model.Position) {
	p.positions[cid] = &MarketPosition{
		Position:    pos,
		ConditionID: cid,
		LastMark:    pos.EntryPrice,
	}
}

// OpenPosition opens a new position for cid if none exists and the
// allocation cap allows it. Returns false, not an error, for either a
// duplicate or a cap/cash rejection: the caller just gets no position.
func (p *MultiMarket) OpenPosition(cid string, side model.Side, price, quantity decimal.Decimal, timestampS int64) bool {
	if p.HasPosition(cid) {
		return false
	}
	cost := price.Mul(quantity)
	if cost.GreaterThan(p.cash.Mul(p.maxPositionPct)) || cost.GreaterThan(p.cash) {
		return false
	}
	p.cash = p.cash.Sub(cost)
	p.positions[cid] = &MarketPosition{
		Position: model.Position{
			Symbol:     cid,
			Side:       side,
			Quantity:   quantity,
			EntryPrice: price,
			EntryTimeS: timestampS,
		},
		ConditionID: cid,
		LastMark:    price,
	}
	return true
}

// ClosePosition closes cid's position at price/timestampS and returns the
// resulting Trade. Returns (Trade{}, false) if no position is open.
func (p *MultiMarket) ClosePosition(cid string, price decimal.Decimal, timestampS int64) (model.Trade, bool) {
	pos, ok := p.positions[cid]
	if !ok {
		return model.Trade{}, false
	}
	delete(p.positions, cid)

	trade := pos.Position.Close(price, decimal.Zero, decimal.Zero, timestampS)
	proceeds := pos.EntryPrice.Mul(pos.Quantity).Add(trade.Pnl)
	p.cash = p.cash.Add(proceeds)

	p.trades = append(p.trades, trade)
	return trade, true
}

// MarkToMarket updates the unrealized pnl for cid's open position at the
// given mark price, per side-aware semantics:
//
//	BUY : unrealized = (mark - entry) * qty
//	SELL: unrealized = (entry - mark) * qty
func (p *MultiMarket) MarkToMarket(cid string, mark decimal.Decimal) {
	pos, ok := p.positions[cid]
	if !ok {
		return
	}
	pos.LastMark = mark
	if pos.Side == model.Sell {
		pos.UnrealizedPnl = pos.EntryPrice.Sub(mark).Mul(pos.Quantity)
	} else {
		pos.UnrealizedPnl = mark.Sub(pos.EntryPrice).Mul(pos.Quantity)
	}
}

// TotalEquity returns cash + sum(entry*qty) + sum(unrealised) across all
// open positions.
func (p *MultiMarket) TotalEquity() decimal.Decimal {
	equity := p.cash
	for _, pos := range p.positions {
		equity = equity.Add(pos.EntryPrice.Mul(pos.Quantity)).Add(pos.UnrealizedPnl)
	}
	return equity
}
