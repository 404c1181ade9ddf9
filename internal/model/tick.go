package model

import "github.com/shopspring/decimal"

// Tick is an immutable single trade event from the streaming feed, as
// consumed and persisted by the tick collector.
type Tick struct {
	AssetID      string
	ConditionID  string
	Price        decimal.Decimal
	Size         decimal.Decimal
	Side         Side
	FeeRateBps   int
	TimestampMs  int64
	ReceivedAtMs int64
}
