package portfolio

import (
	"testing"

	"predictengine/internal/model"
)

func TestMultiMarketDuplicateRejection(t *testing.T) {
	t.Parallel()

	p := NewMultiMarket(dec("1000"), dec("1"))
	if ok := p.OpenPosition("cond_A", model.Buy, dec("0.5"), dec("10"), 1000); !ok {
		t.Fatal("expected first open to succeed")
	}
	if ok := p.OpenPosition("cond_A", model.Buy, dec("0.5"), dec("10"), 1001); ok {
		t.Fatal("expected duplicate open to be rejected")
	}
	if !p.Capital().Equal(dec("950")) {
		t.Errorf("cash = %s, want 950", p.Capital())
	}
}

func TestMultiMarketAllocationCapRejectsOversizedCost(t *testing.T) {
	t.Parallel()

	p := NewMultiMarket(dec("1000"), dec("0.1")) // cap: 100
	if ok := p.OpenPosition("cond_A", model.Buy, dec("0.5"), dec("300"), 1000); ok {
		t.Fatal("expected allocation-cap rejection (cost 150 > cap 100)")
	}
	if !p.Capital().Equal(dec("1000")) {
		t.Errorf("cash should be untouched, got %s", p.Capital())
	}
}

func TestMultiMarketMarkToMarketSellSide(t *testing.T) {
	t.Parallel()

	p := NewMultiMarket(dec("1000"), dec("1"))
	p.OpenPosition("cond_A", model.Sell, dec("0.6"), dec("10"), 1000)
	p.MarkToMarket("cond_A", dec("0.5"))

	positions := p.Positions()
	pos := positions["cond_A"]
	if !pos.UnrealizedPnl.Equal(dec("1")) {
		t.Errorf("unrealized pnl = %s, want 1", pos.UnrealizedPnl)
	}
}

func TestMultiMarketTotalEquity(t *testing.T) {
	t.Parallel()

	p := NewMultiMarket(dec("1000"), dec("1"))
	p.OpenPosition("cond_A", model.Buy, dec("0.5"), dec("10"), 1000)
	p.MarkToMarket("cond_A", dec("0.6"))

	// cash 995 + entry*qty 5 + unrealized 1 = 1001
	want := dec("1001")
	if !p.TotalEquity().Equal(want) {
		t.Errorf("total equity = %s, want %s", p.TotalEquity(), want)
	}
}

func TestMultiMarketCloseRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewMultiMarket(dec("1000"), dec("1"))
	p.OpenPosition("cond_A", model.Buy, dec("0.5"), dec("10"), 1000)

	trade, ok := p.ClosePosition("cond_A", dec("0.5"), 2000)
	if !ok {
		t.Fatal("expected close to succeed")
	}
	if !trade.Pnl.IsZero() {
		t.Errorf("pnl at entry price = %s, want 0", trade.Pnl)
	}
	if !p.Capital().Equal(dec("1000")) {
		t.Errorf("cash after round trip = %s, want 1000", p.Capital())
	}
}
