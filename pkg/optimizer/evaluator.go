package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/logger"
	"github.com/quantarc/fuzzywheel/pkg/metric"
)

// drawdownCap bounds the constrained objective: runs with a deeper drawdown
// score negative infinity regardless of their CAGR.
const drawdownCap = 0.20

// BacktestEvaluator scores one parameter set by running the simulation over
// a train slice and a held-out validation slice of the same history. The
// validation run reuses the tail of the train slice as indicator warmup.
type BacktestEvaluator struct {
	symbol string
	days   []core.TradingDay
	base   backtest.Params
	split  float64
	logger logger.Logger
}

// NewBacktestEvaluator builds an evaluator over the aligned history. Split is
// the fraction of days used for training; 1 disables the validation run.
func NewBacktestEvaluator(symbol string, days []core.TradingDay, base backtest.Params, split float64, log logger.Logger) (*BacktestEvaluator, error) {
	if split <= 0 || split > 1 {
		return nil, fmt.Errorf("%w: train split %.2f outside (0, 1]", core.ErrInvalidParameter, split)
	}

	minLen := backtest.WarmupDays + 1
	if split < 1 {
		minLen = 2 * (backtest.WarmupDays + 1)
	}
	if len(days) < minLen {
		return nil, fmt.Errorf("%w: need at least %d days for evaluation, got %d",
			core.ErrInsufficientHistory, minLen, len(days))
	}

	return &BacktestEvaluator{
		symbol: symbol,
		days:   days,
		base:   base,
		split:  split,
		logger: log,
	}, nil
}

// Evaluate runs the train and validation backtests for one parameter set.
// Invalid candidate vectors are not an error; they come back with all
// objectives at negative infinity so the sorter buries them.
func (e *BacktestEvaluator) Evaluate(ctx context.Context, set ParameterSet) (*Result, error) {
	start := time.Now()

	params, err := ApplyParameterSet(e.base, set)
	if err != nil {
		return nil, err
	}

	result := &Result{Parameters: set, Metrics: make(map[string]float64)}
	if err := params.Validate(); err != nil {
		for _, m := range []MetricName{MetricCAGR, MetricMAR, MetricSharpe, MetricCAGRConstrained} {
			result.Metrics[string(m)] = math.Inf(-1)
			result.Metrics[string(m.Validation())] = math.Inf(-1)
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	splitIdx := int(float64(len(e.days)) * e.split)

	train, err := e.run(ctx, params, e.days[:splitIdx])
	if err != nil {
		return nil, err
	}
	mergeMetrics(result.Metrics, train, "")

	if e.split < 1 {
		// Overlap the warmup so validation trades start at the split point
		validation, err := e.run(ctx, params, e.days[splitIdx-backtest.WarmupDays:])
		if err != nil {
			return nil, err
		}
		mergeMetrics(result.Metrics, validation, "val_")
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (e *BacktestEvaluator) run(ctx context.Context, params backtest.Params, days []core.TradingDay) (metric.Performance, error) {
	opts := []backtest.Option{}
	if e.logger != nil {
		opts = append(opts, backtest.WithLogger(e.logger))
	}

	engine, err := backtest.NewEngine(e.symbol, params, opts...)
	if err != nil {
		return metric.Performance{}, err
	}

	result, err := engine.Run(ctx, days)
	if err != nil {
		return metric.Performance{}, err
	}
	return result.Metrics, nil
}

// mergeMetrics flattens a performance record into the metric map under the
// given key prefix. Aborted runs pin every objective to negative infinity.
func mergeMetrics(into map[string]float64, p metric.Performance, prefix string) {
	put := func(m MetricName, v float64) { into[prefix+string(m)] = v }

	put(MetricCAGR, p.CAGR)
	put(MetricMAR, p.MAR)
	put(MetricSharpe, p.Sharpe)
	put(MetricMaxDrawdown, p.MaxDrawdown)
	put(MetricTotalReturn, p.TotalReturn)
	put(MetricWinRate, p.WinRate)
	put(MetricTradeCount, float64(p.TotalTrades))
	put(MetricTargetMetPct, p.DaysTargetMetPct)

	constrained := p.CAGR
	if p.MaxDrawdown >= drawdownCap {
		constrained = math.Inf(-1)
	}
	put(MetricCAGRConstrained, constrained)

	if p.Aborted {
		put(MetricCAGR, math.Inf(-1))
		put(MetricMAR, math.Inf(-1))
		put(MetricSharpe, math.Inf(-1))
		put(MetricCAGRConstrained, math.Inf(-1))
	}
}

// ApplyParameterSet overlays a parameter set onto a base vector. Unknown
// names are an error so search space typos cannot silently no-op.
func ApplyParameterSet(base backtest.Params, set ParameterSet) (backtest.Params, error) {
	for name, value := range set {
		field, ok := paramFields[name]
		if !ok {
			return base, fmt.Errorf("%w: unknown parameter %q", core.ErrInvalidParameter, name)
		}
		if err := field(&base, value); err != nil {
			return base, err
		}
	}
	return base, nil
}

type paramSetter func(*backtest.Params, interface{}) error

func floatSetter(name string, assign func(*backtest.Params, float64)) paramSetter {
	return func(p *backtest.Params, v interface{}) error {
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%w: parameter %s must be a float", core.ErrInvalidParameter, name)
		}
		assign(p, f)
		return nil
	}
}

func intSetter(name string, assign func(*backtest.Params, int)) paramSetter {
	return func(p *backtest.Params, v interface{}) error {
		i, ok := v.(int)
		if !ok {
			return fmt.Errorf("%w: parameter %s must be an integer", core.ErrInvalidParameter, name)
		}
		assign(p, i)
		return nil
	}
}

var paramFields = map[string]paramSetter{
	"cycle_oversold":           floatSetter("cycle_oversold", func(p *backtest.Params, v float64) { p.CycleOversold = v }),
	"cycle_overbought":         floatSetter("cycle_overbought", func(p *backtest.Params, v float64) { p.CycleOverbought = v }),
	"trend_down":               floatSetter("trend_down", func(p *backtest.Params, v float64) { p.TrendDown = v }),
	"trend_up":                 floatSetter("trend_up", func(p *backtest.Params, v float64) { p.TrendUp = v }),
	"put_moneyness_weight":     floatSetter("put_moneyness_weight", func(p *backtest.Params, v float64) { p.PutMoneynessWeight = v }),
	"put_size_weight":          floatSetter("put_size_weight", func(p *backtest.Params, v float64) { p.PutSizeWeight = v }),
	"call_sell_threshold":      floatSetter("call_sell_threshold", func(p *backtest.Params, v float64) { p.CallSellThreshold = v }),
	"convert_threshold":        floatSetter("convert_threshold", func(p *backtest.Params, v float64) { p.ConvertThreshold = v }),
	"hedge_score_threshold":    floatSetter("hedge_score_threshold", func(p *backtest.Params, v float64) { p.HedgeScoreThreshold = v }),
	"target_dte":               intSetter("target_dte", func(p *backtest.Params, v int) { p.TargetDTE = v }),
	"call_dte":                 intSetter("call_dte", func(p *backtest.Params, v int) { p.CallDTE = v }),
	"hedge_dte":                intSetter("hedge_dte", func(p *backtest.Params, v int) { p.HedgeDTE = v }),
	"target_daily_premium_pct": floatSetter("target_daily_premium_pct", func(p *backtest.Params, v float64) { p.TargetDailyPremiumPct = v }),
	"min_contract_premium":     floatSetter("min_contract_premium", func(p *backtest.Params, v float64) { p.MinContractPremium = v }),
	"max_hedge_notional_pct":   floatSetter("max_hedge_notional_pct", func(p *backtest.Params, v float64) { p.MaxHedgeNotionalPct = v }),
	"hedge_otm_low_vix":        floatSetter("hedge_otm_low_vix", func(p *backtest.Params, v float64) { p.HedgeOTMPctLowVIX = v }),
	"hedge_otm_high_vix":       floatSetter("hedge_otm_high_vix", func(p *backtest.Params, v float64) { p.HedgeOTMPctHighVIX = v }),
	"close_threshold":          floatSetter("close_threshold", func(p *backtest.Params, v float64) { p.CloseThreshold = v }),
	"roll_premium_min":         floatSetter("roll_premium_min", func(p *backtest.Params, v float64) { p.RollPremiumMin = v }),
}

// DefaultParameters declares the full tunable search space with the ranges
// the validator accepts.
func DefaultParameters() []Parameter {
	return []Parameter{
		{Name: "cycle_oversold", Description: "Cycle oversold membership boundary", Default: -0.4, Min: -0.8, Max: -0.15, Type: TypeFloat},
		{Name: "cycle_overbought", Description: "Cycle overbought membership boundary", Default: 0.4, Min: 0.15, Max: 0.8, Type: TypeFloat},
		{Name: "trend_down", Description: "Trend down membership boundary", Default: -0.3, Min: -0.7, Max: -0.1, Type: TypeFloat},
		{Name: "trend_up", Description: "Trend up membership boundary", Default: 0.3, Min: 0.1, Max: 0.7, Type: TypeFloat},
		{Name: "put_moneyness_weight", Description: "Scale on the put strike recommendation", Default: 1.0, Min: 0.5, Max: 1.5, Type: TypeFloat},
		{Name: "put_size_weight", Description: "Scale on the put sizing fraction", Default: 1.0, Min: 0.5, Max: 1.5, Type: TypeFloat},
		{Name: "call_sell_threshold", Description: "Minimum score to write a covered call", Default: 0.6, Min: 0.4, Max: 0.9, Type: TypeFloat},
		{Name: "convert_threshold", Description: "Minimum score to convert shares to calls", Default: 0.6, Min: 0.4, Max: 0.9, Type: TypeFloat},
		{Name: "hedge_score_threshold", Description: "Minimum score to add protective puts", Default: 0.4, Min: 0.2, Max: 0.8, Type: TypeFloat},
		{Name: "target_dte", Description: "Tenor of new short puts in days", Default: 1, Min: 1, Max: 5, Type: TypeInt},
		{Name: "call_dte", Description: "Tenor of covered calls in days", Default: 7, Min: 5, Max: 21, Type: TypeInt},
		{Name: "hedge_dte", Description: "Tenor of protective puts in days", Default: 30, Min: 14, Max: 60, Type: TypeInt},
		{Name: "target_daily_premium_pct", Description: "Daily premium target as a fraction of equity", Default: 0.0008, Min: 0.0002, Max: 0.002, Type: TypeFloat},
		{Name: "min_contract_premium", Description: "Minimum premium per contract in dollars", Default: 50.0, Min: 10.0, Max: 150.0, Type: TypeFloat},
		{Name: "max_hedge_notional_pct", Description: "Hedge notional cap as a fraction of stock exposure", Default: 0.5, Min: 0.1, Max: 1.0, Type: TypeFloat},
		{Name: "hedge_otm_low_vix", Description: "Hedge OTM percent in calm markets", Default: 12.0, Min: 5.0, Max: 20.0, Type: TypeFloat},
		{Name: "hedge_otm_high_vix", Description: "Hedge OTM percent in stressed markets", Default: 6.0, Min: 2.0, Max: 12.0, Type: TypeFloat},
		{Name: "close_threshold", Description: "Buy back shorts marking at or under this price", Default: 0.05, Min: 0.01, Max: 0.20, Type: TypeFloat},
		{Name: "roll_premium_min", Description: "Minimum roll credit as a fraction of equity", Default: 0.0005, Min: 0.0, Max: 0.002, Type: TypeFloat},
	}
}
