package backtest

import (
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

// computeMetrics derives the summary statistics for a completed run from its
// closed trades and the equity curve sampled once per candle. An empty
// trade list is not an error: "no trades" is a valid, unremarkable outcome,
// and yields a Metrics value with only TotalReturn and MaxDrawdown set.
func computeMetrics(initialCapital, finalCapital decimal.Decimal, trades []model.Trade, equityCurve []decimal.Decimal) model.Metrics {
	if initialCapital.IsZero() {
		return model.EmptyMetrics()
	}

	totalReturn := finalCapital.Sub(initialCapital).Div(initialCapital)

	if len(trades) == 0 {
		return model.Metrics{
			TotalReturn: totalReturn,
			MaxDrawdown: maxDrawdown(equityCurve),
		}
	}

	wins := 0
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	totalFees := decimal.Zero
	for _, tr := range trades {
		if tr.Pnl.IsPositive() {
			wins++
			grossProfit = grossProfit.Add(tr.Pnl)
		} else if tr.Pnl.IsNegative() {
			grossLoss = grossLoss.Add(tr.Pnl.Abs())
		}
		totalFees = totalFees.Add(tr.EntryFee).Add(tr.ExitFee)
	}

	winRate := decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(trades))))

	var profitFactor decimal.Decimal
	switch {
	case grossLoss.IsPositive():
		profitFactor = grossProfit.Div(grossLoss)
	case grossProfit.IsPositive():
		profitFactor = grossProfit // no losing trades: factor is unbounded, report gross profit itself
	default:
		profitFactor = decimal.Zero
	}

	return model.Metrics{
		TotalReturn:  totalReturn,
		WinRate:      winRate,
		ProfitFactor: profitFactor,
		MaxDrawdown:  maxDrawdown(equityCurve),
		SharpeRatio:  sharpeRatio(equityCurve),
		TotalTrades:  len(trades),
		TotalFees:    totalFees,
	}
}

// maxDrawdown is the largest peak-to-trough decline observed in the equity
// curve, expressed as a positive fraction of the peak.
func maxDrawdown(equityCurve []decimal.Decimal) decimal.Decimal {
	if len(equityCurve) == 0 {
		return decimal.Zero
	}
	peak := equityCurve[0]
	worst := decimal.Zero
	for _, e := range equityCurve {
		if e.GreaterThan(peak) {
			peak = e
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(e).Div(peak)
		if dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst
}

// sharpeRatio is the mean period-over-period equity return divided by its
// population standard deviation. It is deliberately left unannualized: the
// caller's interval (5m, 1h, 1d, ...) determines the right annualization
// factor, and baking one in here would silently mislabel the number for
// every interval but the one it was tuned for.
func sharpeRatio(equityCurve []decimal.Decimal) decimal.Decimal {
	if len(equityCurve) < 2 {
		return decimal.Zero
	}
	returns := make([]decimal.Decimal, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1]
		if prev.IsZero() {
			continue
		}
		returns = append(returns, equityCurve[i].Sub(prev).Div(prev))
	}
	if len(returns) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, r := range returns {
		sum = sum.Add(r)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(returns))))

	variance := decimal.Zero
	for _, r := range returns {
		d := r.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(decimal.NewFromInt(int64(len(returns))))
	if !variance.IsPositive() {
		return decimal.Zero
	}

	stddev := variance.Pow(decimal.NewFromFloat(0.5))
	if stddev.IsZero() {
		return decimal.Zero
	}
	return mean.Div(stddev)
}
