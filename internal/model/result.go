package model

import "github.com/shopspring/decimal"

// Metrics summarizes a completed backtest run.
type Metrics struct {
	TotalReturn  decimal.Decimal
	WinRate      decimal.Decimal
	ProfitFactor decimal.Decimal
	MaxDrawdown  decimal.Decimal
	SharpeRatio  decimal.Decimal
	TotalTrades  int
	TotalFees    decimal.Decimal
}

// EmptyMetrics is the zero-trade metrics value: total_return 0 and every
// other field zeroed. Running a backtest over an empty candle list returns
// this, at the unchanged initial capital, rather than an error.
func EmptyMetrics() Metrics {
	return Metrics{}
}

// BacktestResult is the immutable outcome of a completed backtest run.
type BacktestResult struct {
	StrategyName   string
	Symbol         string
	Interval       Interval
	InitialCapital decimal.Decimal
	FinalCapital   decimal.Decimal
	Trades         []Trade
	Metrics        Metrics
	Candles        []Candle
}
