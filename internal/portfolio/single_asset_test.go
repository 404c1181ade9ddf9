package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSingleAssetOpenRejectsDuplicate(t *testing.T) {
	t.Parallel()

	p := NewSingleAsset(dec("10000"))
	if err := p.Open("BTC-USD", model.Buy, dec("100"), dec("10"), dec("0"), 1000); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := p.Open("BTC-USD", model.Buy, dec("105"), dec("5"), dec("0"), 1001); err == nil {
		t.Fatal("expected error opening a duplicate position")
	}
}

func TestSingleAssetRoundTripForceClose(t *testing.T) {
	t.Parallel()

	p := NewSingleAsset(dec("10000"))
	if err := p.Open("BTC-USD", model.Buy, dec("100"), dec("100"), dec("0"), 1000); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	closed := p.ForceCloseAll(map[string]decimal.Decimal{"BTC-USD": dec("120")}, nil, 3000)
	if len(closed) != 1 {
		t.Fatalf("len(closed) = %d, want 1", len(closed))
	}
	trade := closed[0]
	if !trade.ExitPrice.Equal(dec("120")) {
		t.Errorf("exit price = %s, want 120", trade.ExitPrice)
	}
	wantFinal := dec("12000")
	if !p.Cash().Equal(wantFinal) {
		t.Errorf("final cash = %s, want %s", p.Cash(), wantFinal)
	}
}

func TestSingleAssetEntryFeeReducesPnl(t *testing.T) {
	t.Parallel()

	p := NewSingleAsset(dec("1000"))
	if err := p.Open("cond", model.Buy, dec("10"), dec("10"), dec("1"), 0); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	trade, err := p.CloseWithEntryFee("cond", dec("10"), dec("1"), dec("0.5"), 1)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !trade.Pnl.Equal(dec("-1.5")) {
		t.Errorf("pnl = %s, want -1.5", trade.Pnl)
	}
}
