package api

import (
	"time"
)

// StatusSnapshot represents the complete status of a running process
// (paper or live engine, or tick collector) at a point in time.
type StatusSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"` // "paper", "live", or "collector"

	Equity      float64 `json:"equity"`
	Capital     float64 `json:"capital"`
	RealizedPnL float64 `json:"realized_pnl"`

	Positions []PositionStatus `json:"positions"`
	Trades    int              `json:"trade_count"`

	Collector CollectorStatus `json:"collector"`
	Config    ConfigSummary   `json:"config"`
}

// PositionStatus represents one open position.
type PositionStatus struct {
	ConditionID   string    `json:"condition_id"`
	Side          string    `json:"side"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	LastMark      float64   `json:"last_mark"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
}

// CollectorStatus reports tick collector health, when this process runs
// one. A process without a collector leaves it zero-valued.
type CollectorStatus struct {
	TotalStored       int64 `json:"total_stored"`
	DeadLetterBatches int   `json:"dead_letter_batches"`
}

// ConfigSummary surfaces the knobs that shape engine behaviour, for
// display alongside a snapshot.
type ConfigSummary struct {
	Strategy       string   `json:"strategy"`
	KellyFraction  float64  `json:"kelly_fraction"`
	MaxPositionPct float64  `json:"max_position_pct"`
	MaxLossPct     float64  `json:"max_loss_pct"`
	Markets        []string `json:"markets"`
	SeriesSlugs    []string `json:"series_slugs"`
	DryRun         bool     `json:"dry_run"`
}
