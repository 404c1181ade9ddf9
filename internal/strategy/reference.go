package strategy

import (
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

// SMACross is a reference Strategy: it emits BUY when the close crosses
// above the simple moving average of the last period candles, and SELL
// on a cross back below. It is registered under the name "sma_cross" and
// exists so the backtest binary has something runnable out of the box,
// not as a claim of trading edge.
type SMACross struct {
	Period int
}

func (s *SMACross) Name() string { return "sma_cross" }

func (s *SMACross) OnCandle(candle model.Candle, history []model.Candle) *model.Signal {
	period := s.Period
	if period <= 0 {
		period = 20
	}
	if len(history) < period {
		return nil
	}

	avg := sma(history[len(history)-period:])
	prevAvg := avg
	if len(history) > period {
		prevAvg = sma(history[len(history)-period-1 : len(history)-1])
	}
	prevClose := history[len(history)-1].Close

	crossedAbove := prevClose.LessThanOrEqual(prevAvg) && candle.Close.GreaterThan(avg)
	crossedBelow := prevClose.GreaterThanOrEqual(prevAvg) && candle.Close.LessThan(avg)

	switch {
	case crossedAbove:
		sig := model.NewSignal(model.Buy, candle.Symbol, model.One, "close crossed above sma")
		return &sig
	case crossedBelow:
		sig := model.NewSignal(model.Sell, candle.Symbol, model.One, "close crossed below sma")
		return &sig
	default:
		return nil
	}
}

func sma(candles []model.Candle) decimal.Decimal {
	sum := model.Zero
	for _, c := range candles {
		sum = sum.Add(c.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

// ThresholdFade is a reference PredictionMarketStrategy: it emits BUY on
// the side trading below buyBelow, betting on reversion toward 0.5 before
// the window closes. Registered under "threshold_fade".
type ThresholdFade struct {
	BuyBelow decimal.Decimal
}

func (s *ThresholdFade) Name() string { return "threshold_fade" }

func (s *ThresholdFade) OnSnapshot(snap model.MarketSnapshot, _ []model.MarketSnapshot) *model.Signal {
	threshold := s.BuyBelow
	if threshold.IsZero() {
		threshold = decimal.NewFromFloat(0.35)
	}
	switch {
	case snap.YesPrice.LessThan(threshold):
		sig := model.NewSignal(model.Buy, snap.ConditionID, model.One, "yes price below fade threshold")
		return &sig
	case snap.NoPrice.LessThan(threshold):
		sig := model.NewSignal(model.Sell, snap.ConditionID, model.One, "no price below fade threshold")
		return &sig
	default:
		return nil
	}
}

// DefaultFactory returns a Factory with SMACross registered.
func DefaultFactory() *Factory {
	f := NewFactory()
	f.Register("sma_cross", func() Strategy { return &SMACross{Period: 20} })
	return f
}

// DefaultPredictionFactory returns a PredictionFactory with ThresholdFade
// registered.
func DefaultPredictionFactory() *PredictionFactory {
	f := NewPredictionFactory()
	f.Register("threshold_fade", func() PredictionMarketStrategy { return &ThresholdFade{} })
	return f
}
