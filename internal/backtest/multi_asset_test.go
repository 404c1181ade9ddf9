package backtest

import (
	"testing"

	"predictengine/internal/model"
	"predictengine/internal/strategy"
)

func TestMergeCandlesBreaksTiesBySymbol(t *testing.T) {
	t.Parallel()

	candles := []model.Candle{
		candle(t, "ETH", 1000, "10", "10", "10", "10", "1"),
		candle(t, "BTC", 1000, "100", "100", "100", "100", "1"),
		candle(t, "BTC", 2000, "101", "101", "101", "101", "1"),
	}
	merged := mergeCandles(candles)
	if merged[0].Symbol != "BTC" || merged[1].Symbol != "ETH" {
		t.Fatalf("same-timestamp tie not broken lexicographically: got %s, %s", merged[0].Symbol, merged[1].Symbol)
	}
	if merged[2].Symbol != "BTC" || merged[2].TimestampS != 2000 {
		t.Fatalf("merge not timestamp-ordered after the tie: got %+v", merged[2])
	}
}

func TestMultiAssetEngineSharesCapitalAcrossSymbols(t *testing.T) {
	t.Parallel()

	candles := []model.Candle{
		candle(t, "BTC", 1000, "100", "100", "100", "100", "1"),
		candle(t, "ETH", 1000, "10", "10", "10", "10", "1"),
		candle(t, "BTC", 2000, "110", "110", "110", "110", "1"),
		candle(t, "ETH", 2000, "11", "11", "11", "11", "1"),
	}

	strategies := map[string]strategy.Strategy{
		"BTC": &buyOnceStrategy{},
		"ETH": &buyOnceStrategy{},
	}

	cfg := flatExecConfig()
	cfg.PositionSizePct = dec("0.5")
	eng, err := NewMultiAssetEngine(strategies, dec("10000"), cfg, model.RiskConfig{})
	if err != nil {
		t.Fatalf("NewMultiAssetEngine: %v", err)
	}

	results, err := eng.Run(candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	btc := results["BTC"]
	eth := results["ETH"]
	if len(btc.Trades) != 1 || len(eth.Trades) != 1 {
		t.Fatalf("want one trade per symbol, got btc=%d eth=%d", len(btc.Trades), len(eth.Trades))
	}
	// Both engines share the same ending cash pool, so FinalCapital must agree.
	if !btc.FinalCapital.Equal(eth.FinalCapital) {
		t.Errorf("final capital diverged across symbols: btc=%s eth=%s", btc.FinalCapital, eth.FinalCapital)
	}
}

func TestMultiAssetEngineRejectsUnknownSymbol(t *testing.T) {
	t.Parallel()

	strategies := map[string]strategy.Strategy{"BTC": &buyOnceStrategy{}}
	eng, err := NewMultiAssetEngine(strategies, dec("10000"), flatExecConfig(), model.RiskConfig{})
	if err != nil {
		t.Fatalf("NewMultiAssetEngine: %v", err)
	}

	candles := []model.Candle{candle(t, "SOL", 1000, "1", "1", "1", "1", "1")}
	if _, err := eng.Run(candles); err == nil {
		t.Fatal("expected error for a symbol with no registered strategy")
	}
}
