package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is an immutable point-in-time view of a prediction market.
// Invariant: 0 <= YesPrice <= 1 and 0 <= NoPrice <= 1. Prices need not sum
// to 1 in the snapshot stream (the market may have a spread); when a
// snapshot is derived from tick data rather than two independent quotes,
// the canonical construction uses NoPrice = 1 - YesPrice (see NewSnapshotFromYes).
type MarketSnapshot struct {
	ConditionID string
	Question    string
	TimestampS  int64
	YesPrice    decimal.Decimal
	NoPrice     decimal.Decimal
	OrderBook   OrderBook
	Volume      decimal.Decimal
	Liquidity   decimal.Decimal
	EndDateISO  string
}

// NewMarketSnapshot validates and constructs a MarketSnapshot.
func NewMarketSnapshot(conditionID, question string, timestampS int64, yesPrice, noPrice decimal.Decimal, book OrderBook, volume, liquidity decimal.Decimal, endDateISO string) (MarketSnapshot, error) {
	if yesPrice.IsNegative() || yesPrice.GreaterThan(One) {
		return MarketSnapshot{}, fmt.Errorf("snapshot %s: yes_price %s out of [0,1]", conditionID, yesPrice)
	}
	if noPrice.IsNegative() || noPrice.GreaterThan(One) {
		return MarketSnapshot{}, fmt.Errorf("snapshot %s: no_price %s out of [0,1]", conditionID, noPrice)
	}
	return MarketSnapshot{
		ConditionID: conditionID,
		Question:    question,
		TimestampS:  timestampS,
		YesPrice:    yesPrice,
		NoPrice:     noPrice,
		OrderBook:   book,
		Volume:      volume,
		Liquidity:   liquidity,
		EndDateISO:  endDateISO,
	}, nil
}

// NewSnapshotFromYes builds a snapshot using the canonical NoPrice = 1 - YesPrice
// construction used when deriving snapshots from a single-sided tick feed.
func NewSnapshotFromYes(conditionID, question string, timestampS int64, yesPrice decimal.Decimal, book OrderBook, volume, liquidity decimal.Decimal, endDateISO string) (MarketSnapshot, error) {
	return NewMarketSnapshot(conditionID, question, timestampS, yesPrice, One.Sub(yesPrice), book, volume, liquidity, endDateISO)
}
