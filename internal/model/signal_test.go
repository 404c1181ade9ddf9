package model

import "testing"

func TestNewSignalPanicsOutOfRange(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range strength")
		}
	}()
	NewSignal(Buy, "BTC-USD", d("1.5"), "bad")
}

func TestNewSignalAcceptsBoundaryValues(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"0", "1", "0.5"} {
		sig := NewSignal(Buy, "BTC-USD", d(s), "ok")
		if !sig.Strength.Equal(d(s)) {
			t.Errorf("strength = %s, want %s", sig.Strength, s)
		}
	}
}
