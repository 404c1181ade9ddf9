// Package strategy defines the two tagged strategy interfaces the engines
// depend on (backtest and live/paper), a small named factory, and reference
// implementations used by the test suite. Concrete production strategies
// and indicator formulas live outside this module; what's here is the
// contract, not a trading edge.
package strategy

import "predictengine/internal/model"

// Strategy is the backtest engine's collaborator: given the current candle
// and the prior history for its symbol, it may emit a Signal.
type Strategy interface {
	Name() string
	OnCandle(candle model.Candle, history []model.Candle) *model.Signal
}

// PredictionMarketStrategy is the live/paper engine's collaborator: given
// the current market snapshot and the prior history for its condition ID,
// it may emit a Signal.
type PredictionMarketStrategy interface {
	Name() string
	OnSnapshot(snap model.MarketSnapshot, history []model.MarketSnapshot) *model.Signal
}
