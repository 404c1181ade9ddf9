// Package kelly implements fractional-Kelly position sizing for binary
// prediction-market bets, shared by the paper and live trading engines.
package kelly

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// maxProbability is the cap applied to an estimated probability before
// computing a Kelly fraction.
var maxProbability = decimal.NewFromFloat(0.99)

// CapProbability clamps p to at most 0.99.
func CapProbability(p decimal.Decimal) decimal.Decimal {
	if p.GreaterThan(maxProbability) {
		return maxProbability
	}
	return p
}

// Fraction computes the fractional-Kelly bet size given an estimated win
// probability p, the buy price b (the cost of a winning $1 payout), and a
// fractional multiplier f in (0,1].
//
//	k = (p - b) / (1 - b)   if b < 1, else 0
//	k = max(k, 0)
//	return f * k
func Fraction(p, b, f decimal.Decimal) decimal.Decimal {
	if b.GreaterThanOrEqual(one) {
		return decimal.Zero
	}
	k := p.Sub(b).Div(one.Sub(b))
	if k.IsNegative() {
		k = decimal.Zero
	}
	return f.Mul(k)
}

// EstimatedProbability computes
// min(0.99, buy_price + strength*(1 - buy_price)): a strategy's confidence
// [0,1] interpolates between the market-implied price and certainty.
func EstimatedProbability(buyPrice, strength decimal.Decimal) decimal.Decimal {
	p := buyPrice.Add(strength.Mul(one.Sub(buyPrice)))
	return CapProbability(p)
}

// Quantity converts a Kelly fraction into an integer share count:
// max(1, floor(maxQuantity * fraction)). Returns 0 (no trade) when fraction
// is zero or negative; callers should treat that as an abort signal, not
// place a zero-size order.
func Quantity(maxQuantity, fraction decimal.Decimal) decimal.Decimal {
	if !fraction.IsPositive() {
		return decimal.Zero
	}
	raw := maxQuantity.Mul(fraction).Floor()
	if raw.LessThan(one) {
		return one
	}
	return raw
}
