package kelly

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFractionClampsNegativeToZero(t *testing.T) {
	t.Parallel()

	got := Fraction(dec("0.4"), dec("0.5"), dec("0.25"))
	if !got.IsZero() {
		t.Errorf("Fraction = %s, want 0", got)
	}
}

func TestFractionPositiveEdge(t *testing.T) {
	t.Parallel()

	got := Fraction(dec("0.8"), dec("0.5"), dec("0.25"))
	want := dec("0.15")
	if !got.Equal(want) {
		t.Errorf("Fraction = %s, want %s", got, want)
	}
}

func TestFractionPEqualsB(t *testing.T) {
	t.Parallel()

	got := Fraction(dec("0.5"), dec("0.5"), dec("0.25"))
	if !got.IsZero() {
		t.Errorf("Fraction(p=b) = %s, want 0", got)
	}
}

func TestFractionPEqualsOne(t *testing.T) {
	t.Parallel()

	got := Fraction(dec("1"), dec("0.5"), dec("1"))
	if !got.Equal(dec("1")) {
		t.Errorf("Fraction(p=1,f=1) = %s, want 1", got)
	}
}

func TestQuantityFloorsAndMinimumOne(t *testing.T) {
	t.Parallel()

	got := Quantity(dec("100"), dec("0.001"))
	if !got.Equal(dec("1")) {
		t.Errorf("Quantity = %s, want 1 (minimum)", got)
	}

	got = Quantity(dec("100"), dec("0.15"))
	if !got.Equal(dec("15")) {
		t.Errorf("Quantity = %s, want 15", got)
	}
}

func TestQuantityZeroFractionYieldsZero(t *testing.T) {
	t.Parallel()

	got := Quantity(dec("100"), decimal.Zero)
	if !got.IsZero() {
		t.Errorf("Quantity = %s, want 0", got)
	}
}

func TestEstimatedProbabilityCapsAtPoint99(t *testing.T) {
	t.Parallel()

	got := EstimatedProbability(dec("0.9"), dec("1"))
	if !got.Equal(dec("0.99")) {
		t.Errorf("EstimatedProbability = %s, want 0.99", got)
	}
}
