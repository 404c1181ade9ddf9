package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func candle(t *testing.T, symbol string, ts int64, o, h, l, c, v string) model.Candle {
	t.Helper()
	cd, err := model.NewCandle(symbol, ts, dec(o), dec(h), dec(l), dec(c), dec(v), model.Interval1h)
	if err != nil {
		t.Fatalf("candle: %v", err)
	}
	return cd
}

// buyOnceStrategy emits one BUY on the first candle it sees and stays
// silent afterward; it never emits a SELL (the engine force-closes at the
// end of the run instead).
type buyOnceStrategy struct {
	fired bool
}

func (s *buyOnceStrategy) Name() string { return "buy-once" }

func (s *buyOnceStrategy) OnCandle(c model.Candle, history []model.Candle) *model.Signal {
	if s.fired {
		return nil
	}
	s.fired = true
	sig := model.NewSignal(model.Buy, c.Symbol, dec("1"), "entry")
	return &sig
}

func flatExecConfig() model.ExecutionConfig {
	return model.ExecutionConfig{
		MakerFeePct:     decimal.Zero,
		TakerFeePct:     decimal.Zero,
		SlippagePct:     decimal.Zero,
		PositionSizePct: dec("1"),
	}
}

func TestEngineRunBuyAndForceClose(t *testing.T) {
	t.Parallel()

	candles := []model.Candle{
		candle(t, "BTC", 1000, "100", "100", "100", "100", "10"),
		candle(t, "BTC", 2000, "110", "110", "110", "110", "10"),
		candle(t, "BTC", 3000, "120", "120", "120", "120", "10"),
	}

	eng, err := NewEngine("BTC", model.Interval1h, &buyOnceStrategy{}, dec("10000"), flatExecConfig(), model.RiskConfig{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := eng.Run(candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("want 1 trade, got %d", len(result.Trades))
	}
	tr := result.Trades[0]
	if !tr.EntryPrice.Equal(dec("100")) || !tr.ExitPrice.Equal(dec("120")) || !tr.Quantity.Equal(dec("100")) {
		t.Errorf("trade = %+v, want entry=100 exit=120 qty=100", tr)
	}
	if !result.FinalCapital.Equal(dec("12000")) {
		t.Errorf("final capital = %s, want 12000", result.FinalCapital)
	}
	if !result.Metrics.TotalReturn.Equal(dec("0.2")) {
		t.Errorf("total_return = %s, want 0.2", result.Metrics.TotalReturn)
	}
}

// sellSignalOnThird opens on the first candle and emits an explicit SELL on
// the third, so the close happens mid-run rather than via force-close.
type sellSignalOnThird struct {
	calls int
}

func (s *sellSignalOnThird) Name() string { return "sell-on-third" }

func (s *sellSignalOnThird) OnCandle(c model.Candle, history []model.Candle) *model.Signal {
	s.calls++
	switch s.calls {
	case 1:
		sig := model.NewSignal(model.Buy, c.Symbol, dec("1"), "entry")
		return &sig
	case 3:
		sig := model.NewSignal(model.Sell, c.Symbol, dec("1"), "exit")
		return &sig
	default:
		return nil
	}
}

func TestEngineExplicitSellCloses(t *testing.T) {
	t.Parallel()

	candles := []model.Candle{
		candle(t, "BTC", 1000, "100", "100", "100", "100", "10"),
		candle(t, "BTC", 2000, "105", "105", "105", "105", "10"),
		candle(t, "BTC", 3000, "90", "90", "90", "90", "10"),
		candle(t, "BTC", 4000, "150", "150", "150", "150", "10"),
	}

	eng, err := NewEngine("BTC", model.Interval1h, &sellSignalOnThird{}, dec("10000"), flatExecConfig(), model.RiskConfig{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result, err := eng.Run(candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("want 1 trade, got %d", len(result.Trades))
	}
	if !result.Trades[0].ExitPrice.Equal(dec("90")) {
		t.Errorf("exit price = %s, want 90 (candle 4's rally must not affect an already-closed trade)", result.Trades[0].ExitPrice)
	}
}

func TestEngineStopLossWinsOverTakeProfitOnSameCandle(t *testing.T) {
	t.Parallel()

	candles := []model.Candle{
		candle(t, "BTC", 1000, "100", "100", "100", "100", "10"),
		candle(t, "BTC", 2000, "100", "115", "90", "105", "10"),
	}

	risk := model.RiskConfig{StopLossPct: decPtr("0.05"), TakeProfitPct: decPtr("0.10")}
	eng, err := NewEngine("BTC", model.Interval1h, &buyOnceStrategy{}, dec("10000"), flatExecConfig(), risk)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result, err := eng.Run(candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("want 1 trade, got %d", len(result.Trades))
	}
	if !result.Trades[0].ExitPrice.Equal(dec("95")) {
		t.Errorf("exit price = %s, want 95 (stop-loss must win the same-candle tie)", result.Trades[0].ExitPrice)
	}
}

func TestEngineEmptyCandleListIsNotAnError(t *testing.T) {
	t.Parallel()

	eng, err := NewEngine("BTC", model.Interval1h, &buyOnceStrategy{}, dec("10000"), flatExecConfig(), model.RiskConfig{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result, err := eng.Run(nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("want 0 trades, got %d", len(result.Trades))
	}
	if !result.FinalCapital.Equal(dec("10000")) {
		t.Errorf("final capital = %s, want 10000", result.FinalCapital)
	}
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
