package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Signal is a strategy's immutable request to buy or sell, with a
// confidence in [0,1]. The constructor rejects out-of-range strength: per
// the error-handling design, a strategy producing an invalid signal is a
// bug that must surface immediately, not a value the core tolerates.
type Signal struct {
	Side     Side
	Symbol   string
	Strength decimal.Decimal
	Reason   string
}

// NewSignal validates and constructs a Signal. It panics on an out-of-range
// strength: a strategy returning an invalid signal is a programmer error
// that must surface immediately at construction, not a recoverable runtime
// condition a caller is expected to branch on.
func NewSignal(side Side, symbol string, strength decimal.Decimal, reason string) Signal {
	if strength.IsNegative() || strength.GreaterThan(One) {
		panic(fmt.Sprintf("model: signal strength %s out of [0,1] for %s/%s", strength, symbol, side))
	}
	return Signal{Side: side, Symbol: symbol, Strength: strength, Reason: reason}
}
