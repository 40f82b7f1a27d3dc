// Package backtest runs the daily wheel simulation: a position ledger, a
// trade executor driven by the fuzzy rule set, and the engine that walks the
// aligned price history one day at a time.
package backtest

import (
	"context"
	"fmt"
	"os"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/indicator"
	"github.com/quantarc/fuzzywheel/pkg/logger"
	zerologger "github.com/quantarc/fuzzywheel/pkg/logger/zerolog"
	"github.com/quantarc/fuzzywheel/pkg/metric"
	"github.com/quantarc/fuzzywheel/pkg/pricing"
	"github.com/quantarc/fuzzywheel/pkg/strategy"
	"github.com/rs/zerolog"
)

// minPutSizeFraction gates put writing: below this the day is considered
// premium-satisfied and no new puts go out.
const minPutSizeFraction = 0.1

// Result is everything one simulation run produces.
type Result struct {
	Metrics metric.Performance
	Days    []metric.DailyRecord
	Trades  []*core.Trade
}

// Engine drives one backtest over an aligned daily history. Engines are
// single-run; build a fresh one per parameter vector.
type Engine struct {
	symbol  string
	params  Params
	model   *pricing.Model
	rules   *strategy.RuleSet
	ledger  *Ledger
	storage core.TradeStorage
	onDay   func(metric.DailyRecord)
	log     logger.Logger
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger replaces the default logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPricingModel replaces the default option pricing model.
func WithPricingModel(model *pricing.Model) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithStorage persists the trade journal after the run.
func WithStorage(storage core.TradeStorage) Option {
	return func(e *Engine) {
		e.storage = storage
	}
}

// WithDayHook calls fn after each traded day, mainly for progress reporting.
func WithDayHook(fn func(metric.DailyRecord)) Option {
	return func(e *Engine) {
		e.onDay = fn
	}
}

// NewEngine validates the parameter vector and assembles a run-ready engine.
func NewEngine(symbol string, params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		symbol: symbol,
		params: params,
		model:  pricing.NewDefaultModel(),
		rules:  strategy.NewRuleSet(params.thresholds()),
		ledger: NewLedger(symbol, params.InitialCapital),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		zl := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
		e.log = zerologger.NewAdapter(&zl)
	}
	return e, nil
}

// Ledger exposes the position book, mainly for the recommendation report.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Run walks the history one day at a time. The first WarmupDays feed the
// indicators only; trading and the equity curve start after that. A book that
// marks to zero or below aborts the run with the aborted flag set rather
// than an error.
func (e *Engine) Run(ctx context.Context, days []core.TradingDay) (*Result, error) {
	if len(days) <= WarmupDays {
		return nil, fmt.Errorf("%w: need more than %d days, got %d",
			core.ErrInsufficientHistory, WarmupDays, len(days))
	}

	result := &Result{}
	aborted := false

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i < WarmupDays {
			continue
		}

		e.tradeDay(days, i)

		equity := e.ledger.TotalValue(day.Close)
		record := metric.DailyRecord{
			Date:    day.Date,
			Equity:  equity,
			Premium: e.ledger.DailyPremium(),
			Target:  e.ledger.DailyTarget(),
		}
		result.Days = append(result.Days, record)
		if e.onDay != nil {
			e.onDay(record)
		}

		if equity <= 0 {
			e.log.WithField("date", day.Date.Format("2006-01-02")).
				Warn("portfolio value depleted, aborting run")
			aborted = true
			break
		}
	}

	result.Trades = e.ledger.Trades()
	result.Metrics = metric.Analyze(result.Days, result.Trades)
	result.Metrics.Aborted = aborted

	if e.storage != nil {
		for _, t := range result.Trades {
			if err := e.storage.SaveTrade(t); err != nil {
				return nil, fmt.Errorf("persisting trades: %w", err)
			}
		}
	}
	return result, nil
}

// tradeDay executes the fixed daily sequence for day index i.
func (e *Engine) tradeDay(days []core.TradingDay, i int) {
	day := days[i]
	spot := day.Close

	e.ledger.ResetDay(e.ledger.TotalValue(spot) * e.params.TargetDailyPremiumPct)

	// Position maintenance before any new risk goes on
	e.markPositions(day)
	e.rollITMPuts(day)
	e.resolveExpirations(day)
	e.closeCheapShorts(day)
	e.markPositions(day)

	trend, cycle, vixNorm := e.signals(days, i)
	scores := e.score(day, trend, cycle, vixNorm)

	if scores.PutSizeFrac > minPutSizeFraction {
		e.sellPut(day, scores)
	}
	e.sellCoveredCall(day, scores)
	e.convertShares(day, scores)
	e.buyHedge(day, scores)
}

// signals recomputes the trailing indicators for day index i. The window is
// capped so late days cost the same as early ones.
func (e *Engine) signals(days []core.TradingDay, i int) (trend, cycle, vixNorm float64) {
	start := i - indicatorWindow + 1
	if start < 0 {
		start = 0
	}
	window := days[start : i+1]

	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	closes := make([]float64, len(window))
	vixes := make([]float64, len(window))
	for j, d := range window {
		highs[j] = d.High
		lows[j] = d.Low
		closes[j] = d.Close
		vixes[j] = d.VIX
	}

	trend = strategy.NormalizeTrend(indicator.TrendStrength(indicator.HL2(highs, lows)))
	cycle = strategy.NormalizeCycle(indicator.CycleStrength(closes))
	vixNorm = strategy.NormalizeVIX(days[i].VIX, vixes)
	return trend, cycle, vixNorm
}
