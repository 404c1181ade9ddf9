package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Candle is an immutable OHLCV bar for one symbol over one interval.
// Invariant: Low <= Open,Close <= High and Volume >= 0, enforced by
// NewCandle at construction so a bad value surfaces immediately rather
// than propagating into a backtest.
type Candle struct {
	Symbol    string
	TimestampS int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Interval  Interval
}

// NewCandle validates and constructs a Candle.
func NewCandle(symbol string, timestampS int64, open, high, low, close, volume decimal.Decimal, interval Interval) (Candle, error) {
	if !interval.Valid() {
		return Candle{}, fmt.Errorf("candle %s@%d: invalid interval %q", symbol, timestampS, interval)
	}
	if low.GreaterThan(open) || low.GreaterThan(close) || open.GreaterThan(high) || close.GreaterThan(high) {
		return Candle{}, fmt.Errorf("candle %s@%d: low<=open,close<=high violated (o=%s h=%s l=%s c=%s)",
			symbol, timestampS, open, high, low, close)
	}
	if volume.IsNegative() {
		return Candle{}, fmt.Errorf("candle %s@%d: negative volume %s", symbol, timestampS, volume)
	}
	return Candle{
		Symbol:     symbol,
		TimestampS: timestampS,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		Volume:     volume,
		Interval:   interval,
	}, nil
}
