package model

import "testing"

func TestNewMarketSnapshotRejectsOutOfRangePrice(t *testing.T) {
	t.Parallel()

	_, err := NewMarketSnapshot("cond1", "q", 1000, d("1.5"), d("0.1"), OrderBook{}, d("0"), d("0"), "")
	if err == nil {
		t.Fatal("expected error for yes_price > 1")
	}
}

func TestNewSnapshotFromYesDerivesComplement(t *testing.T) {
	t.Parallel()

	snap, err := NewSnapshotFromYes("cond1", "q", 1000, d("0.63"), OrderBook{}, d("0"), d("0"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.NoPrice.Equal(d("0.37")) {
		t.Errorf("no_price = %s, want 0.37", snap.NoPrice)
	}
}

func TestOrderBookEmptySideHasNoMidpoint(t *testing.T) {
	t.Parallel()

	ob := NewOrderBook("tok", nil, []PriceLevel{{Price: d("0.6"), Size: d("10")}})
	if _, _, ok := ob.BestBidAsk(); ok {
		t.Fatal("expected ok=false with empty bid side")
	}
	if !ob.Spread.IsZero() || !ob.Midpoint.IsZero() {
		t.Errorf("expected zero spread/midpoint with empty side, got spread=%s mid=%s", ob.Spread, ob.Midpoint)
	}
}

func TestOrderBookDerivesSpreadAndMidpoint(t *testing.T) {
	t.Parallel()

	ob := NewOrderBook("tok",
		[]PriceLevel{{Price: d("0.55"), Size: d("100")}},
		[]PriceLevel{{Price: d("0.57"), Size: d("50")}},
	)
	bid, ask, ok := ob.BestBidAsk()
	if !ok || !bid.Equal(d("0.55")) || !ask.Equal(d("0.57")) {
		t.Fatalf("BestBidAsk = %s/%s/%v, want 0.55/0.57/true", bid, ask, ok)
	}
	if !ob.Spread.Equal(d("0.02")) {
		t.Errorf("spread = %s, want 0.02", ob.Spread)
	}
	if !ob.Midpoint.Equal(d("0.56")) {
		t.Errorf("midpoint = %s, want 0.56", ob.Midpoint)
	}
}
