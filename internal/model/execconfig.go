package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ExecutionConfig parameterizes fees, slippage, and position sizing shared
// by the backtest and live engines.
type ExecutionConfig struct {
	MakerFeePct      decimal.Decimal
	TakerFeePct      decimal.Decimal
	SlippagePct      decimal.Decimal
	PositionSizePct  decimal.Decimal // (0,1]
	VolatilitySizing bool
	ATRPeriod        int
	TargetRiskPct    decimal.Decimal
}

// Validate enforces ExecutionConfig's field invariants.
func (c ExecutionConfig) Validate() error {
	if c.MakerFeePct.IsNegative() {
		return fmt.Errorf("execution config: maker_fee_pct must be >= 0")
	}
	if c.TakerFeePct.IsNegative() {
		return fmt.Errorf("execution config: taker_fee_pct must be >= 0")
	}
	if c.SlippagePct.IsNegative() || c.SlippagePct.GreaterThan(One) {
		return fmt.Errorf("execution config: slippage_pct must be in [0,1]")
	}
	if !c.PositionSizePct.IsPositive() || c.PositionSizePct.GreaterThan(One) {
		return fmt.Errorf("execution config: position_size_pct must be in (0,1]")
	}
	if c.VolatilitySizing && c.ATRPeriod <= 0 {
		return fmt.Errorf("execution config: atr_period must be > 0 when volatility_sizing is set")
	}
	return nil
}

// RiskConfig sets optional stop-loss/take-profit/circuit-breaker thresholds.
// All fields are optional; a nil *decimal.Decimal means "not configured".
type RiskConfig struct {
	StopLossPct        *decimal.Decimal
	TakeProfitPct      *decimal.Decimal
	CircuitBreakerPct  *decimal.Decimal
	RecoveryPct        *decimal.Decimal
}

