package backtest

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/portfolio"
	"predictengine/internal/strategy"
)

// MultiAssetEngine replays several symbols' candles through per-symbol
// Strategy instances sharing one capital pool. Candles across symbols are
// merged into a single timestamp-ordered stream before replay; ties at the
// same timestamp are broken by symbol in lexicographic order, so the merge
// is deterministic regardless of each symbol's original feed order.
type MultiAssetEngine struct {
	strategies map[string]strategy.Strategy
	execCfg    model.ExecutionConfig
	riskCfg    model.RiskConfig

	initialCapital decimal.Decimal
}

// NewMultiAssetEngine constructs a MultiAssetEngine. strategies maps each
// traded symbol to the Strategy instance driving it; every symbol that
// appears in the candle set passed to Run must have an entry here.
func NewMultiAssetEngine(strategies map[string]strategy.Strategy, initialCapital decimal.Decimal, execCfg model.ExecutionConfig, riskCfg model.RiskConfig) (*MultiAssetEngine, error) {
	if err := execCfg.Validate(); err != nil {
		return nil, err
	}
	if !initialCapital.IsPositive() {
		return nil, fmt.Errorf("backtest: initial_capital must be > 0")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("backtest: multi-asset engine requires at least one strategy")
	}
	return &MultiAssetEngine{strategies: strategies, execCfg: execCfg, riskCfg: riskCfg, initialCapital: initialCapital}, nil
}

// mergeCandles stable-sorts candles by (TimestampS, Symbol) so that same-
// timestamp candles from different symbols appear in a fixed, repeatable
// order independent of how they were interleaved by the caller.
func mergeCandles(candles []model.Candle) []model.Candle {
	merged := make([]model.Candle, len(candles))
	copy(merged, candles)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].TimestampS != merged[j].TimestampS {
			return merged[i].TimestampS < merged[j].TimestampS
		}
		return merged[i].Symbol < merged[j].Symbol
	})
	return merged
}

// Run replays the merged multi-symbol candle stream once, maintaining a
// separate history per symbol but a single shared portfolio and circuit
// breaker across all of them, and returns one BacktestResult per symbol.
func (e *MultiAssetEngine) Run(candles []model.Candle) (map[string]model.BacktestResult, error) {
	merged := mergeCandles(candles)

	book := portfolio.NewSingleAsset(e.initialCapital)
	breaker := newCircuitBreaker(circuitBreakerConfig{
		BreakerPct:  e.riskCfg.CircuitBreakerPct,
		RecoveryPct: e.riskCfg.RecoveryPct,
	})

	history := make(map[string][]model.Candle)
	entryFees := make(map[string]decimal.Decimal)
	lastClose := make(map[string]decimal.Decimal)
	lastCandle := make(map[string]model.Candle)
	tradesBySymbol := make(map[string][]model.Trade)
	equityCurve := make([]decimal.Decimal, 0, len(merged))

	for _, candle := range merged {
		strat, ok := e.strategies[candle.Symbol]
		if !ok {
			return nil, fmt.Errorf("backtest: no strategy registered for symbol %s", candle.Symbol)
		}

		if pos, open := book.Position(candle.Symbol); open {
			if exitPrice, triggered := CheckRiskTriggers(candle, pos.EntryPrice, e.riskCfg, pos.Side); triggered {
				exitFee := exitPrice.Mul(pos.Quantity).Mul(e.execCfg.TakerFeePct)
				trade, err := book.CloseWithEntryFee(candle.Symbol, exitPrice, entryFees[candle.Symbol], exitFee, candle.TimestampS)
				if err != nil {
					return nil, err
				}
				tradesBySymbol[candle.Symbol] = append(tradesBySymbol[candle.Symbol], trade)
			} else if signal := strat.OnCandle(candle, history[candle.Symbol]); signal != nil && signal.Side == model.Sell {
				exitPrice := ApplyExitSlippage(candle.Close, e.execCfg.SlippagePct)
				exitFee := exitPrice.Mul(pos.Quantity).Mul(e.execCfg.TakerFeePct)
				trade, err := book.CloseWithEntryFee(candle.Symbol, exitPrice, entryFees[candle.Symbol], exitFee, candle.TimestampS)
				if err != nil {
					return nil, err
				}
				tradesBySymbol[candle.Symbol] = append(tradesBySymbol[candle.Symbol], trade)
			}
		} else if !breaker.ShouldSkipSignal(book.Equity(lastCloseWith(lastClose, candle))) {
			if signal := strat.OnCandle(candle, history[candle.Symbol]); signal != nil && signal.Side == model.Buy {
				entryPrice := ApplyEntrySlippage(candle.Close, e.execCfg.SlippagePct)
				alloc := ComputeAllocation(book.Cash(), entryPrice, e.execCfg, history[candle.Symbol])
				if alloc.Quantity.IsPositive() {
					if err := book.Open(candle.Symbol, model.Buy, entryPrice, alloc.Quantity, alloc.EntryFee, candle.TimestampS); err != nil {
						return nil, err
					}
					entryFees[candle.Symbol] = alloc.EntryFee
				}
			}
		}

		history[candle.Symbol] = append(history[candle.Symbol], candle)
		lastClose[candle.Symbol] = candle.Close
		lastCandle[candle.Symbol] = candle

		equity := book.Equity(lastClose)
		equityCurve = append(equityCurve, equity)
		breaker.UpdateAfterClose(equity)
	}

	var finalTimestamp int64
	for _, c := range lastCandle {
		if c.TimestampS > finalTimestamp {
			finalTimestamp = c.TimestampS
		}
	}
	closed := book.ForceCloseAll(lastClose, entryFees, finalTimestamp)
	for _, trade := range closed {
		tradesBySymbol[trade.Symbol] = append(tradesBySymbol[trade.Symbol], trade)
	}

	finalCapital := book.Cash()
	results := make(map[string]model.BacktestResult, len(e.strategies))
	for symbol, strat := range e.strategies {
		trades := tradesBySymbol[symbol]
		results[symbol] = model.BacktestResult{
			StrategyName:   strat.Name(),
			Symbol:         symbol,
			InitialCapital: e.initialCapital,
			FinalCapital:   finalCapital,
			Trades:         trades,
			Metrics:        computeMetrics(e.initialCapital, finalCapital, trades, equityCurve),
			Candles:        history[symbol],
		}
	}
	return results, nil
}

// lastCloseWith returns a copy of known with symbol's candle close applied,
// leaving known untouched (Equity needs a full mark map, not just the
// symbol currently being processed).
func lastCloseWith(known map[string]decimal.Decimal, candle model.Candle) map[string]decimal.Decimal {
	marks := make(map[string]decimal.Decimal, len(known)+1)
	for k, v := range known {
		marks[k] = v
	}
	marks[candle.Symbol] = candle.Close
	return marks
}
