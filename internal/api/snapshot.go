package api

import (
	"time"

	"github.com/shopspring/decimal"

	"predictengine/internal/config"
	"predictengine/internal/model"
	"predictengine/internal/portfolio"
)

// StatusProvider is the subset of ledger behaviour the status server
// needs to build a snapshot. portfolio.MultiMarket and
// portfolio.LiveMultiMarket both satisfy it directly.
type StatusProvider interface {
	TotalEquity() decimal.Decimal
	Capital() decimal.Decimal
	Positions() map[string]portfolio.MarketPosition
	Trades() []model.Trade
}

// CollectorStatusProvider is implemented by collector.Collector.
type CollectorStatusProvider interface {
	TotalStored() int64
	DeadLetterCount() int
}

// BuildSnapshot aggregates ledger and (optionally) collector state into a
// StatusSnapshot. collector may be nil for a process that does not run
// one.
func BuildSnapshot(mode string, provider StatusProvider, collector CollectorStatusProvider, cfg config.Config) StatusSnapshot {
	var equity, capital, realized float64
	var out []PositionStatus
	var tradeCount int

	if provider != nil {
		equity, _ = provider.TotalEquity().Float64()
		capital, _ = provider.Capital().Float64()

		positions := provider.Positions()
		out = make([]PositionStatus, 0, len(positions))
		for cid, pos := range positions {
			entry, _ := pos.EntryPrice.Float64()
			mark, _ := pos.LastMark.Float64()
			qty, _ := pos.Quantity.Float64()
			pnl, _ := pos.UnrealizedPnl.Float64()
			out = append(out, PositionStatus{
				ConditionID:   cid,
				Side:          string(pos.Side),
				Quantity:      qty,
				EntryPrice:    entry,
				LastMark:      mark,
				UnrealizedPnL: pnl,
				OpenedAt:      time.Unix(pos.EntryTimeS, 0),
			})
		}

		trades := provider.Trades()
		tradeCount = len(trades)
		for _, t := range trades {
			pnl, _ := t.Pnl.Float64()
			realized += pnl
		}
	}

	var collectorStatus CollectorStatus
	if collector != nil {
		collectorStatus = CollectorStatus{
			TotalStored:       collector.TotalStored(),
			DeadLetterBatches: collector.DeadLetterCount(),
		}
	}

	return StatusSnapshot{
		Timestamp:   time.Now(),
		Mode:        mode,
		Equity:      equity,
		Capital:     capital,
		RealizedPnL: realized,
		Positions:   out,
		Trades:      tradeCount,
		Collector:   collectorStatus,
		Config: ConfigSummary{
			Strategy:       cfg.Trading.Strategy,
			KellyFraction:  cfg.Trading.KellyFraction,
			MaxPositionPct: cfg.Trading.MaxPositionPct,
			MaxLossPct:     cfg.Trading.MaxLossPct,
			Markets:        cfg.Trading.Markets,
			SeriesSlugs:    cfg.Trading.SeriesSlugs,
			DryRun:         cfg.DryRun,
		},
	}
}
