package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by TradingAPI.GetMarket when the condition ID is
// unknown to the venue.
type ErrNotFound struct {
	ConditionID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("market %s not found", e.ConditionID)
}

func errOutOfRange(price decimal.Decimal) error {
	return fmt.Errorf("order price %s out of open interval (0,1)", price)
}

func errNonPositiveSize(size decimal.Decimal) error {
	return fmt.Errorf("order size %s must be > 0", size)
}
