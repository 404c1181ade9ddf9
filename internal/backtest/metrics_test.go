package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

func TestComputeMetricsNoTrades(t *testing.T) {
	t.Parallel()

	m := computeMetrics(dec("1000"), dec("1000"), nil, []decimal.Decimal{dec("1000")})
	if !m.TotalReturn.IsZero() || m.TotalTrades != 0 {
		t.Errorf("metrics = %+v, want zero-trade result", m)
	}
}

func TestComputeMetricsWinRateAndProfitFactor(t *testing.T) {
	t.Parallel()

	trades := []model.Trade{
		model.NewTrade("BTC", model.Buy, dec("1"), dec("100"), 0, dec("110"), 1, dec("0"), dec("0")), // +10
		model.NewTrade("BTC", model.Buy, dec("1"), dec("100"), 2, dec("95"), 3, dec("0"), dec("0")),  // -5
	}
	equity := []decimal.Decimal{dec("1000"), dec("1010"), dec("1005")}

	m := computeMetrics(dec("1000"), dec("1005"), trades, equity)
	if !m.WinRate.Equal(dec("0.5")) {
		t.Errorf("win_rate = %s, want 0.5", m.WinRate)
	}
	if !m.ProfitFactor.Equal(dec("2")) {
		t.Errorf("profit_factor = %s, want 2 (10 gross profit / 5 gross loss)", m.ProfitFactor)
	}
	if m.TotalTrades != 2 {
		t.Errorf("total_trades = %d, want 2", m.TotalTrades)
	}
}

func TestMaxDrawdownTracksPeakToTrough(t *testing.T) {
	t.Parallel()

	curve := []decimal.Decimal{dec("1000"), dec("1200"), dec("900"), dec("1100")}
	dd := maxDrawdown(curve)
	// (1200-900)/1200 = 0.25
	if !dd.Equal(dec("0.25")) {
		t.Errorf("max_drawdown = %s, want 0.25", dd)
	}
}

func TestSharpeRatioZeroWhenFlat(t *testing.T) {
	t.Parallel()

	curve := []decimal.Decimal{dec("1000"), dec("1000"), dec("1000")}
	if !sharpeRatio(curve).IsZero() {
		t.Errorf("sharpe ratio on a flat equity curve should be 0, got %s", sharpeRatio(curve))
	}
}
