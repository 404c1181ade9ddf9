// Package backtest drives a Strategy candle-by-candle over historical
// data, enforcing risk exits and a drawdown circuit breaker, and computes
// the resulting performance metrics.
package backtest

import (
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ApplyEntrySlippage returns price*(1+slip): a buy fills worse (higher).
func ApplyEntrySlippage(price, slip decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(slip))
}

// ApplyExitSlippage returns price*(1-slip): a sell fills worse (lower).
func ApplyExitSlippage(price, slip decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Sub(slip))
}

// Allocation is the result of ComputeAllocation.
type Allocation struct {
	Allocation decimal.Decimal
	EntryFee   decimal.Decimal
	Quantity   decimal.Decimal
}

// ComputeAllocation implements the position-sizing rule:
//
//	allocation = capital * position_size_pct
//	entry_fee  = allocation * taker_fee
//	quantity   = (allocation - entry_fee) / price
//
// When cfg.VolatilitySizing is set and history has at least ATRPeriod+1
// candles, the target allocation is instead capital*target_risk_pct /
// (ATR/price), capped by the base (flat-sizing) allocation so volatility
// sizing can only shrink, never grow, the position relative to the flat
// sizing rule.
func ComputeAllocation(capital, price decimal.Decimal, cfg model.ExecutionConfig, history []model.Candle) Allocation {
	if !price.IsPositive() {
		return Allocation{}
	}

	baseAllocation := capital.Mul(cfg.PositionSizePct)
	entryFee := baseAllocation.Mul(cfg.TakerFeePct)
	allocation := baseAllocation

	if cfg.VolatilitySizing && len(history) >= cfg.ATRPeriod+1 {
		atr := averageTrueRange(history, cfg.ATRPeriod)
		if atr.IsPositive() {
			riskAllocation := capital.Mul(cfg.TargetRiskPct).Div(atr.Div(price))
			if riskAllocation.LessThan(allocation) {
				allocation = riskAllocation
				entryFee = allocation.Mul(cfg.TakerFeePct)
			}
		}
	}

	quantity := allocation.Sub(entryFee).Div(price)
	return Allocation{Allocation: allocation, EntryFee: entryFee, Quantity: quantity}
}

// averageTrueRange computes a simple (non-smoothed) ATR over the last
// period candles of history: mean of true range, where true range for the
// first candle in the window is just high-low (no prior close to compare
// against a synthetic "first" candle).
func averageTrueRange(history []model.Candle, period int) decimal.Decimal {
	n := len(history)
	window := history[n-period:]

	sum := decimal.Zero
	for i, c := range window {
		tr := c.High.Sub(c.Low)
		if i > 0 {
			prevClose := window[i-1].Close
			hc := c.High.Sub(prevClose).Abs()
			lc := c.Low.Sub(prevClose).Abs()
			if hc.GreaterThan(tr) {
				tr = hc
			}
			if lc.GreaterThan(tr) {
				tr = lc
			}
		}
		sum = sum.Add(tr)
	}
	return sum.Div(decimal.NewFromInt(int64(len(window))))
}

// CheckRiskTriggers evaluates stop-loss/take-profit against candle's
// high/low (direction-aware) and returns the exit price that triggered, or
// false if neither triggered. When both would trigger on the same candle,
// stop-loss wins.
func CheckRiskTriggers(candle model.Candle, entryPrice decimal.Decimal, cfg model.RiskConfig, side model.Side) (decimal.Decimal, bool) {
	if side == model.Sell {
		return checkShortRiskTriggers(candle, entryPrice, cfg)
	}
	return checkLongRiskTriggers(candle, entryPrice, cfg)
}

func checkLongRiskTriggers(candle model.Candle, entryPrice decimal.Decimal, cfg model.RiskConfig) (decimal.Decimal, bool) {
	if cfg.StopLossPct != nil {
		slPrice := entryPrice.Mul(decimal.NewFromInt(1).Sub(*cfg.StopLossPct))
		if candle.Low.LessThanOrEqual(slPrice) {
			return slPrice, true
		}
	}
	if cfg.TakeProfitPct != nil {
		tpPrice := entryPrice.Mul(decimal.NewFromInt(1).Add(*cfg.TakeProfitPct))
		if candle.High.GreaterThanOrEqual(tpPrice) {
			return tpPrice, true
		}
	}
	return decimal.Zero, false
}

func checkShortRiskTriggers(candle model.Candle, entryPrice decimal.Decimal, cfg model.RiskConfig) (decimal.Decimal, bool) {
	// Mirror image: a short loses money when price rises, profits when it falls.
	if cfg.StopLossPct != nil {
		slPrice := entryPrice.Mul(decimal.NewFromInt(1).Add(*cfg.StopLossPct))
		if candle.High.GreaterThanOrEqual(slPrice) {
			return slPrice, true
		}
	}
	if cfg.TakeProfitPct != nil {
		tpPrice := entryPrice.Mul(decimal.NewFromInt(1).Sub(*cfg.TakeProfitPct))
		if candle.Low.LessThanOrEqual(tpPrice) {
			return tpPrice, true
		}
	}
	return decimal.Zero, false
}
