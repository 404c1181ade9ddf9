package api

import "time"

// DashboardEvent is the wrapper for all events pushed to connected
// websocket clients.
type DashboardEvent struct {
	Type        string      `json:"type"` // "snapshot", "trade_opened", "trade_closed", "circuit_breaker"
	Timestamp   time.Time   `json:"timestamp"`
	ConditionID string      `json:"condition_id,omitempty"`
	Data        interface{} `json:"data"`
}

// TradeOpenedEvent is emitted when the engine opens a new position.
type TradeOpenedEvent struct {
	ConditionID string  `json:"condition_id"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
}

// TradeClosedEvent is emitted when a position is closed, carrying the
// realized result.
type TradeClosedEvent struct {
	ConditionID string  `json:"condition_id"`
	ExitPrice   float64 `json:"exit_price"`
	Pnl         float64 `json:"pnl"`
	PnlPct      float64 `json:"pnl_pct"`
}

// CircuitBreakerEvent is emitted on a breaker state transition.
type CircuitBreakerEvent struct {
	Name  string `json:"name"`
	State string `json:"state"` // "open", "half_open", "closed"
}

// NewTradeOpenedEvent builds a TradeOpenedEvent from the engine's own
// decimal fields, converting to float64 only at the JSON boundary.
func NewTradeOpenedEvent(conditionID, side string, price, quantity float64) TradeOpenedEvent {
	return TradeOpenedEvent{ConditionID: conditionID, Side: side, Price: price, Quantity: quantity}
}

// NewTradeClosedEvent builds a TradeClosedEvent.
func NewTradeClosedEvent(conditionID string, exitPrice, pnl, pnlPct float64) TradeClosedEvent {
	return TradeClosedEvent{ConditionID: conditionID, ExitPrice: exitPrice, Pnl: pnl, PnlPct: pnlPct}
}

// NewCircuitBreakerEvent builds a CircuitBreakerEvent.
func NewCircuitBreakerEvent(name, state string) CircuitBreakerEvent {
	return CircuitBreakerEvent{Name: name, State: state}
}
