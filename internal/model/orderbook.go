package model

import "github.com/shopspring/decimal"

// PriceLevel is one rung of an order book side.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is an immutable view of one token's resting liquidity. Bids are
// ordered price-descending, asks price-ascending. An empty book (no bids,
// no asks, or both) is a valid state, not an error: Spread and Midpoint
// are simply zero in that case.
type OrderBook struct {
	TokenID  string
	Bids     []PriceLevel
	Asks     []PriceLevel
	Spread   decimal.Decimal
	Midpoint decimal.Decimal
}

// NewOrderBook derives Spread and Midpoint from the best bid/ask. Bids and
// asks are assumed to already be sorted by the caller: the feed/REST
// adapters are responsible for delivering bids price-descending and asks
// price-ascending.
func NewOrderBook(tokenID string, bids, asks []PriceLevel) OrderBook {
	ob := OrderBook{TokenID: tokenID, Bids: bids, Asks: asks}
	if len(bids) == 0 || len(asks) == 0 {
		return ob
	}
	bestBid := bids[0].Price
	bestAsk := asks[0].Price
	ob.Spread = bestAsk.Sub(bestBid)
	ob.Midpoint = bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	return ob
}

// BestBidAsk returns the best bid and ask prices, and false if either side
// is empty.
func (ob OrderBook) BestBidAsk() (bid, ask decimal.Decimal, ok bool) {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return ob.Bids[0].Price, ob.Asks[0].Price, true
}
