package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/portfolio"
	"predictengine/internal/strategy"
)

// Engine replays a single symbol's candles through a Strategy, applying
// fees, slippage, optional stop-loss/take-profit exits, and an optional
// equity-drawdown circuit breaker, and produces a BacktestResult.
//
// Candles are consumed strictly in the order given; Engine does not sort
// or validate monotonicity itself (the caller, typically a historical
// candle provider, is the source of truth for ordering).
type Engine struct {
	symbol   string
	interval model.Interval
	strat    strategy.Strategy
	execCfg  model.ExecutionConfig
	riskCfg  model.RiskConfig

	initialCapital decimal.Decimal
}

// NewEngine constructs an Engine for a single symbol/interval pair.
func NewEngine(symbol string, interval model.Interval, strat strategy.Strategy, initialCapital decimal.Decimal, execCfg model.ExecutionConfig, riskCfg model.RiskConfig) (*Engine, error) {
	if err := execCfg.Validate(); err != nil {
		return nil, err
	}
	if !initialCapital.IsPositive() {
		return nil, fmt.Errorf("backtest: initial_capital must be > 0")
	}
	return &Engine{
		symbol:         symbol,
		interval:       interval,
		strat:          strat,
		execCfg:        execCfg,
		riskCfg:        riskCfg,
		initialCapital: initialCapital,
	}, nil
}

// Run replays candles in order and returns the completed BacktestResult. An
// empty candle slice is not an error: it returns a result at initial
// capital with zero trades.
func (e *Engine) Run(candles []model.Candle) (model.BacktestResult, error) {
	if len(candles) == 0 {
		return model.BacktestResult{
			StrategyName:   e.strat.Name(),
			Symbol:         e.symbol,
			Interval:       e.interval,
			InitialCapital: e.initialCapital,
			FinalCapital:   e.initialCapital,
			Metrics:        model.EmptyMetrics(),
		}, nil
	}

	book := portfolio.NewSingleAsset(e.initialCapital)
	breaker := newCircuitBreaker(circuitBreakerConfig{
		BreakerPct:  e.riskCfg.CircuitBreakerPct,
		RecoveryPct: e.riskCfg.RecoveryPct,
	})

	var history []model.Candle
	var entryFee decimal.Decimal
	equityCurve := make([]decimal.Decimal, 0, len(candles))

	for _, candle := range candles {
		if candle.Symbol != e.symbol {
			return model.BacktestResult{}, fmt.Errorf("backtest: candle for %s fed to %s engine", candle.Symbol, e.symbol)
		}

		if pos, open := book.Position(e.symbol); open {
			if exitPrice, triggered := CheckRiskTriggers(candle, pos.EntryPrice, e.riskCfg, pos.Side); triggered {
				exitFee := exitPrice.Mul(pos.Quantity).Mul(e.execCfg.TakerFeePct)
				if _, err := book.CloseWithEntryFee(e.symbol, exitPrice, entryFee, exitFee, candle.TimestampS); err != nil {
					return model.BacktestResult{}, err
				}
			} else if signal := e.strat.OnCandle(candle, history); signal != nil && signal.Side == model.Sell {
				exitPrice := ApplyExitSlippage(candle.Close, e.execCfg.SlippagePct)
				exitFee := exitPrice.Mul(pos.Quantity).Mul(e.execCfg.TakerFeePct)
				if _, err := book.CloseWithEntryFee(e.symbol, exitPrice, entryFee, exitFee, candle.TimestampS); err != nil {
					return model.BacktestResult{}, err
				}
			}
		} else if !breaker.ShouldSkipSignal(book.Equity(map[string]decimal.Decimal{e.symbol: candle.Close})) {
			if signal := e.strat.OnCandle(candle, history); signal != nil && signal.Side == model.Buy {
				entryPrice := ApplyEntrySlippage(candle.Close, e.execCfg.SlippagePct)
				alloc := ComputeAllocation(book.Cash(), entryPrice, e.execCfg, history)
				if alloc.Quantity.IsPositive() {
					if err := book.Open(e.symbol, model.Buy, entryPrice, alloc.Quantity, alloc.EntryFee, candle.TimestampS); err != nil {
						return model.BacktestResult{}, err
					}
					entryFee = alloc.EntryFee
				}
			}
		}

		history = append(history, candle)

		equity := book.Equity(map[string]decimal.Decimal{e.symbol: candle.Close})
		equityCurve = append(equityCurve, equity)
		breaker.UpdateAfterClose(equity)
	}

	last := candles[len(candles)-1]
	book.ForceCloseAll(
		map[string]decimal.Decimal{e.symbol: last.Close},
		map[string]decimal.Decimal{e.symbol: entryFee},
		last.TimestampS,
	)

	finalCapital := book.Cash()
	trades := book.Trades()

	return model.BacktestResult{
		StrategyName:   e.strat.Name(),
		Symbol:         e.symbol,
		Interval:       e.interval,
		InitialCapital: e.initialCapital,
		FinalCapital:   finalCapital,
		Trades:         trades,
		Metrics:        computeMetrics(e.initialCapital, finalCapital, trades, equityCurve),
		Candles:        candles,
	}, nil
}
