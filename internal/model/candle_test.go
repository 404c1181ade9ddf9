package model

import "testing"

func TestNewCandleRejectsLowAboveOpen(t *testing.T) {
	t.Parallel()

	_, err := NewCandle("BTC-USD", 1000, d("100"), d("110"), d("105"), d("108"), d("1"), Interval1h)
	if err == nil {
		t.Fatal("expected error when low > open")
	}
}

func TestNewCandleRejectsNegativeVolume(t *testing.T) {
	t.Parallel()

	_, err := NewCandle("BTC-USD", 1000, d("100"), d("110"), d("90"), d("105"), d("-1"), Interval1h)
	if err == nil {
		t.Fatal("expected error for negative volume")
	}
}

func TestNewCandleRejectsUnknownInterval(t *testing.T) {
	t.Parallel()

	_, err := NewCandle("BTC-USD", 1000, d("100"), d("110"), d("90"), d("105"), d("1"), Interval("3m"))
	if err == nil {
		t.Fatal("expected error for unrecognised interval")
	}
}

func TestNewCandleAccepts(t *testing.T) {
	t.Parallel()

	c, err := NewCandle("BTC-USD", 1000, d("100"), d("110"), d("90"), d("105"), d("1"), Interval1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Close.Equal(d("105")) {
		t.Errorf("close = %s, want 105", c.Close)
	}
}
