package backtest

import "github.com/shopspring/decimal"

// circuitBreaker implements the backtest engine's drawdown halt: once
// drawdown from the running equity peak reaches the configured breaker
// threshold, new signals are skipped until equity has recovered by the
// configured recovery fraction measured from the trip-time equity level.
//
// This is bespoke threshold/recovery bookkeeping, not a request
// failure-counting state machine, so it is implemented directly rather
// than forced onto a generic circuit-breaker library (see DESIGN.md).
type circuitBreaker struct {
	breakerPct  *decimal.Decimal
	recoveryPct *decimal.Decimal

	active        bool
	trippedEquity decimal.Decimal
	peakEquity    decimal.Decimal
}

func newCircuitBreaker(cfg circuitBreakerConfig) *circuitBreaker {
	return &circuitBreaker{breakerPct: cfg.BreakerPct, recoveryPct: cfg.RecoveryPct}
}

type circuitBreakerConfig struct {
	BreakerPct  *decimal.Decimal
	RecoveryPct *decimal.Decimal
}

// ShouldSkipSignal reports whether the breaker is tripped and equity has
// not yet recovered by recoveryPct from the trip-time level. Clears the
// breaker as a side effect once recovery is reached.
func (cb *circuitBreaker) ShouldSkipSignal(currentEquity decimal.Decimal) bool {
	if !cb.active {
		return false
	}
	if cb.recoveryPct == nil {
		return true
	}
	recoveryTarget := cb.trippedEquity.Mul(decimal.NewFromInt(1).Add(*cb.recoveryPct))
	if currentEquity.GreaterThanOrEqual(recoveryTarget) {
		cb.active = false
		return false
	}
	return true
}

// UpdateAfterClose recalculates the running peak and trips the breaker if
// drawdown from peak reaches breakerPct.
func (cb *circuitBreaker) UpdateAfterClose(currentEquity decimal.Decimal) {
	if cb.breakerPct == nil {
		return
	}
	if currentEquity.GreaterThan(cb.peakEquity) {
		cb.peakEquity = currentEquity
	}
	if cb.peakEquity.IsZero() {
		return
	}
	drawdown := cb.peakEquity.Sub(currentEquity).Div(cb.peakEquity)
	if !cb.active && drawdown.GreaterThanOrEqual(*cb.breakerPct) {
		cb.active = true
		cb.trippedEquity = currentEquity
	}
}
